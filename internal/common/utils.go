package common

// WipeByteArray overwrites the contents of b with zeros. Used to drop
// passwords from memory once they have been sent.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
