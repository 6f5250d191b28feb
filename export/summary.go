// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/2dChan/windpotential/analysis"
)

const rule = "-----------------------------------"

// WriteSummary writes the bilingual detailed summary of s. An empty region
// titles the report for the whole country. A zero generated time omits the
// timestamp line.
func WriteSummary(w io.Writer, s analysis.Summary, region string, generated time.Time) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	if region != "" {
		p("THỐNG KÊ CHI TIẾT VỀ TỐC ĐỘ GIÓ TẠI %s\n", strings.ToUpper(region))
		p("DETAILED WIND SPEED STATISTICS FOR %s\n\n", strings.ToUpper(region))
	} else {
		p("THỐNG KÊ CHI TIẾT VỀ TỐC ĐỘ GIÓ TẠI VIỆT NAM\n")
		p("DETAILED WIND SPEED STATISTICS FOR VIETNAM\n\n")
	}
	if !generated.IsZero() {
		p("Thời gian tạo | Generated: %s\n\n", generated.UTC().Format(time.RFC3339))
	}

	threshold := FormatSpeed(s.MinSpeed)
	p("I. THÔNG TIN CƠ BẢN | BASIC INFORMATION\n%s\n", rule)
	p("Tổng số khu vực phân tích | Total analyzed areas: %d\n", s.Total)
	p("Số khu vực có tiềm năng cao (>%s m/s) | High potential areas (>%s m/s): %d\n", threshold, threshold, s.High)
	p("Tỷ lệ khu vực có tiềm năng cao | Percentage of high potential areas: %.2f%%\n\n", s.Percentage)

	p("II. THỐNG KÊ TỐC ĐỘ GIÓ | WIND SPEED STATISTICS\n%s\n", rule)
	p("Tốc độ gió thấp nhất | Minimum wind speed: %.2f m/s\n", s.Min)
	p("Tốc độ gió cao nhất | Maximum wind speed: %.2f m/s\n", s.Max)
	p("Tốc độ gió trung bình | Average wind speed: %.2f m/s\n", s.Mean)
	p("Tốc độ gió trung vị | Median wind speed: %.2f m/s\n", s.Median)
	p("Độ lệch chuẩn | Standard deviation: %.2f m/s\n\n", s.Std)

	p("III. PHÂN PHỐI TỐC ĐỘ GIÓ | WIND SPEED DISTRIBUTION\n%s\n", rule)
	p("Tốc độ gió (m/s) | Wind Speed (m/s) | Số lượng khu vực | Number of areas | Tỷ lệ | Percentage\n")
	for _, b := range s.Distribution {
		p("%s m/s | %d | %.2f%%\n", b.Label, b.Count, b.Percentage)
	}
	return bw.Flush()
}
