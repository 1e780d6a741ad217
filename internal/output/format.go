package output

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/kpiwatch/internal/kpi"
)

// FormatValue renders an optional metric value according to its display
// format. Nil renders as a dash.
func FormatValue(v *float64, f kpi.Format, currencySymbol string) string {
	if v == nil {
		return "─"
	}
	x := *v
	switch f {
	case kpi.FormatCurrency:
		sign := ""
		if x < 0 {
			sign = "-"
			x = math.Abs(x)
		}
		return sign + currencySymbol + humanize.FormatFloat("#,###.##", x)
	case kpi.FormatPercent:
		return fmt.Sprintf("%.1f%%", x)
	case kpi.FormatDays:
		if x == 1 {
			return "1 day"
		}
		return humanize.CommafWithDigits(x, 1) + " days"
	}
	return humanize.CommafWithDigits(x, 2)
}
