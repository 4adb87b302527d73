package export

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
)

// nameAlphabet covers the alphanumeric portion of generated object names
const nameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz0123456789"

// RandomName generates an object name of six random alphanumerics
// followed by a random decimal number of up to four digits and a .json
// suffix
func RandomName() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i, v := range b {
		b[i] = nameAlphabet[int(v)%len(nameAlphabet)]
	}
	return string(b) + strconv.Itoa(randomInt(10000)) + ".json"
}

func randomInt(n int) int {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return int(binary.BigEndian.Uint32(b[:]) % uint32(n))
}
