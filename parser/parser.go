package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-tyres/models"
)

var (
	idSeparators = regexp.MustCompile(`[\s()/]`)
	idRepeats    = regexp.MustCompile(`[_-]+`)
)

// ValidateEntry ensures an extracted record satisfies the ResultEntry invariants.
func ValidateEntry(e *models.ResultEntry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entry missing name")
	}
	if e.FrontLink == "" || e.BackLink == "" {
		return fmt.Errorf("entry missing product link for %s", e.Name)
	}
	for label, price := range map[string]float64{"front": e.FrontPrice, "back": e.BackPrice, "set": e.SetPrice} {
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return fmt.Errorf("entry %s has non-numeric %s price", e.Name, label)
		}
	}
	return nil
}

// NormalizePrice strips the euro symbol and surrounding whitespace and turns
// a decimal comma into a decimal point. Thousands separators are not handled.
func NormalizePrice(raw string) string {
	price := strings.ReplaceAll(raw, "\u00a0", " ")
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "€", "")
	price = strings.TrimSpace(price)
	return strings.Replace(price, ",", ".", 1)
}

// ParsePriceEuro converts "123,45 €" style text into a number.
func ParsePriceEuro(raw string) (float64, error) {
	normalized := NormalizePrice(raw)
	if normalized == "" {
		return 0, fmt.Errorf("empty price %q", raw)
	}
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("price %q is not a finite number", raw)
	}
	return value, nil
}

// FormatPrice renders a price without trailing zeros ("100", "123.45").
func FormatPrice(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ManufacturerFromReportLink returns the fourth "/"-separated segment of a
// report link, or models.UnknownManufacturer when there is none.
func ManufacturerFromReportLink(link string) string {
	if strings.TrimSpace(link) == "" {
		return models.UnknownManufacturer
	}
	parts := strings.Split(link, "/")
	if len(parts) < 4 || strings.TrimSpace(parts[3]) == "" {
		return models.UnknownManufacturer
	}
	return parts[3]
}

// PairName joins front and back product names, collapsing identical ones.
func PairName(front, back string) string {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == back {
		return front
	}
	return front + " / " + back
}

// NormalizeIDPart makes a query value safe for use in a file name stem.
func NormalizeIDPart(value string) string {
	value = strings.TrimSpace(value)
	value = idSeparators.ReplaceAllString(value, "_")
	value = idRepeats.ReplaceAllString(value, "_")
	return strings.Trim(value, "_")
}
