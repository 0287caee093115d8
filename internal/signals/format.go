package signals

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Format renders a value for display. It is total over every Kind.
//
//	null            → "N/A"
//	bool            → "Yes" / "No"
//	number ≥ 1000   → "$1,234.50"
//	0 < number < 1  → "12.5%"
//	other numbers   → "-1,234.5" (grouped, at most 3 decimals)
//	list            → elements joined with ", "
//	map             → indented JSON in original key order
//	string          → as is
func Format(v Value) string {
	switch v.kind {
	case KindNull:
		return "N/A"
	case KindBool:
		if v.b {
			return "Yes"
		}
		return "No"
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = plainText(item)
		}
		return strings.Join(parts, ", ")
	case KindMap:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return string(b)
	default:
		return ""
	}
}

// FormatNumber applies the numeric display rules.
func FormatNumber(f float64) string {
	switch {
	case f >= 1000:
		return "$" + humanize.FormatFloat("#,###.##", f)
	case f > 0 && f < 1:
		return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
	default:
		r := math.Round(f*1000) / 1000
		if r == 0 {
			r = 0 // drop negative zero
		}
		return humanize.Commaf(r)
	}
}

// plainText is the element rendering used inside lists: no currency or
// percentage treatment, nulls become empty, nested maps become compact JSON.
func plainText(v Value) string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = plainText(item)
		}
		return strings.Join(parts, ",")
	case KindMap:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
