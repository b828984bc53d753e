package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %s", decimal.New(minor, -2).StringFixed(2), strings.ToUpper(currency))
}
