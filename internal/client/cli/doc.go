// Package cli implements the fluma command line client on top of cobra.
//
// Every subcommand builds a services.AuthService from the resolved
// configuration, runs a single operation against the server and exits. The
// session (user name and token pair) is kept in the local SQLite database
// between invocations, so "login" followed by "reissue" or "logout" works
// across separate processes.
package cli
