package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// GrantTypeBearer is the grant type reported with every issued token pair.
const GrantTypeBearer = "Bearer"
