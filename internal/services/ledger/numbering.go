package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// NextContractNumber returns "{year}-{NNNN}", one past the highest sequence
// already used in that year. Numbers from other years or in other formats
// are ignored.
func NextContractNumber(year int, existing []string) string {
	return FormatContractNumber(year, highestSequence(year, existing)+1)
}

// FormatContractNumber renders a contract reference.
func FormatContractNumber(year, sequence int) string {
	return fmt.Sprintf("%d-%04d", year, sequence)
}

func highestSequence(year int, existing []string) int {
	prefix := strconv.Itoa(year) + "-"
	highest := 0
	for _, number := range existing {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
		if err != nil || seq < 0 {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest
}
