// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Command windmap builds the interactive wind potential map from the data
// files in their conventional locations under data/.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2dChan/windpotential/analyzer"
	"github.com/2dChan/windpotential/boundary"
	"github.com/2dChan/windpotential/internal/observability"
	"github.com/2dChan/windpotential/tessellate"
)

const (
	boundaryName  = "vietnam.geojson"
	windName      = "VNM_wind-speed_100m.tif"
	provincesName = "vietnam_provinces.geojson"

	atlasURL = "https://globalwindatlas.info/area/Vietnam"
)

var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errReported):
		os.Exit(1)
	default:
		slog.Error("interactive map failed", "error", err)
		os.Exit(1)
	}
}

// checkRequiredFiles lists every missing data file and where to get it.
func checkRequiredFiles(w io.Writer, paths ...string) error {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Lỗi: Không tìm thấy các file dữ liệu sau / Error: The following data files were not found:")
	for _, p := range missing {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintf(w, "\nBạn cần tải dữ liệu từ Global Wind Atlas / Download the data from Global Wind Atlas: %s\n", atlasURL)
	return errReported
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("windmap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data", "data", "Thư mục dữ liệu / Data directory")
	outDir := fs.String("output", "results", "Thư mục kết quả / Output directory")
	region := fs.String("region", "", `Tên tỉnh/thành phố, ví dụ: "Gia Lai" / Province name, e.g. "Gia Lai". Default: entire Vietnam`)
	points := fs.Int("points", 100, "Số lượng điểm để tạo các đa giác Voronoi / Number of Voronoi sites")
	seed := fs.Int64("seed", 42, "Random seed for site sampling")
	minSpeed := fs.Float64("min-speed", 6.0, "Ngưỡng tiềm năng cao (m/s) / High potential threshold (m/s)")
	listRegions := fs.Bool("list-regions", false, "Liệt kê các tỉnh/thành phố có sẵn rồi thoát / List available provinces and exit")
	logLevel := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *points < 1 {
		return fmt.Errorf("points must be positive, got %d", *points)
	}

	boundaryPath := filepath.Join(*dataDir, boundaryName)
	windPath := filepath.Join(*dataDir, windName)
	provincesPath := filepath.Join(*dataDir, provincesName)
	if err := checkRequiredFiles(stderr, boundaryPath, windPath, provincesPath); err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, *logLevel, "text")
	a := analyzer.New(analyzer.WithLogger(logger))

	if *listRegions {
		if err := a.LoadProvinces(provincesPath); err != nil {
			return err
		}
		regions, err := a.ListRegions()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "\nCác tỉnh/thành phố có sẵn để phân tích / Available provinces/cities for analysis:")
		for _, r := range regions {
			fmt.Fprintf(stdout, "  - %s\n", r)
		}
		return nil
	}

	place := "toàn bộ Việt Nam"
	if *region != "" {
		place = *region
	}
	fmt.Fprintf(stdout, "\n=== Tạo bản đồ tương tác cho %s ===\n\n", place)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := a.LoadData(boundaryPath, windPath); err != nil {
		return err
	}

	var suffix string
	if *region != "" {
		if err := a.LoadProvinces(provincesPath); err != nil {
			return err
		}
		if err := a.SelectRegion(*region); err != nil {
			fmt.Fprintf(stderr, "Lỗi / Error: %v\n", err)
			return errReported
		}
		suffix = "_" + boundary.Slug(*region)
	}

	opts := tessellate.DefaultOptions()
	opts.Points, opts.Seed = *points, *seed
	if err := a.CreateVoronoiPolygons(opts); err != nil {
		return err
	}
	if err := a.CalculateWindStatistics(ctx); err != nil {
		return err
	}

	out := filepath.Join(*outDir, "vietnam_wind_interactive"+suffix+".html")
	if err := a.CreateInteractiveVisualization(out, *minSpeed); err != nil {
		return fmt.Errorf("create interactive map: %w", err)
	}

	fmt.Fprintf(stdout, "Đã lưu bản đồ tương tác tại / Saved interactive map to: %s\n", out)
	fmt.Fprintln(stdout, "\nHướng dẫn / Instructions:")
	fmt.Fprintln(stdout, "- Mở file HTML trong trình duyệt / Open the HTML file in a browser")
	fmt.Fprintln(stdout, "- Di chuột trên các vùng để xem tốc độ gió / Hover over areas to see wind speed")
	return nil
}
