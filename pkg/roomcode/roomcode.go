package roomcode

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Alphabet drops visually confusable symbols (0/O, 1/I).
const (
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 6
)

var codePattern = regexp.MustCompile(fmt.Sprintf(`^[%s]{%d}$`, alphabet, Length))

func Generate() string {
	code := make([]byte, Length)
	for i := range code {
		code[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(code)
}

// Normalize uppercases and trims user input so codes compare exactly.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func Valid(code string) bool {
	return codePattern.MatchString(code)
}
