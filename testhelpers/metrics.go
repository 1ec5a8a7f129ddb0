package testhelpers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"testing"
)

func randomInt(tb testing.TB, max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		tb.Fatalf("error generating random data: %s", err)
	}
	return n.Int64()
}

func RandomString(tb testing.TB, length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	bts := make([]byte, length)
	for i := range bts {
		bts[i] = charset[randomInt(tb, int64(len(charset)))]
	}
	return string(bts)
}

// StatsdLine is a generated statsd line together with the fields it
// encodes.
type StatsdLine struct {
	Text  string
	Name  string
	Code  string
	Value int64
	// Rate is zero when the line has no @rate suffix.
	Rate float64
}

var statsdCodes = []string{"c", "g", "ms", "h", "m"}

// RandomStatsdLine returns a well-formed line with a dotted name, an
// integer value and one of the known type codes. Half of the counters carry
// a sample rate.
func RandomStatsdLine(tb testing.TB) StatsdLine {
	line := StatsdLine{
		Name: fmt.Sprintf("%s.%s",
			RandomString(tb, 8), RandomString(tb, int(randomInt(tb, 10))+1)),
		Code:  statsdCodes[randomInt(tb, int64(len(statsdCodes)))],
		Value: randomInt(tb, 2000000) - 1000000,
	}
	line.Text = fmt.Sprintf("%s:%d|%s", line.Name, line.Value, line.Code)
	if line.Code == "c" && randomInt(tb, 2) == 0 {
		line.Rate = 0.5
		line.Text += "@0.5"
	}
	return line
}

// GenerateRandomStatsdMetricPackets returns count packets of between one and
// maxLines newline-separated lines each, along with the lines in order.
func GenerateRandomStatsdMetricPackets(
	tb testing.TB, count int, maxLines int,
) ([][]byte, [][]StatsdLine) {
	packets := make([][]byte, count)
	lines := make([][]StatsdLine, count)

	for i := range packets {
		n := int(randomInt(tb, int64(maxLines))) + 1
		texts := make([]string, n)
		lines[i] = make([]StatsdLine, n)
		for j := range texts {
			lines[i][j] = RandomStatsdLine(tb)
			texts[j] = lines[i][j].Text
		}
		packets[i] = []byte(strings.Join(texts, "\n"))
	}
	return packets, lines
}
