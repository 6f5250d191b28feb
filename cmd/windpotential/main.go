// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Command windpotential analyses wind energy potential over Vietnam or one of
// its provinces and writes KML, CSV, GeoJSON, figures and an interactive map.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/2dChan/windpotential/analyzer"
	"github.com/2dChan/windpotential/internal/config"
	"github.com/2dChan/windpotential/internal/observability"
	"github.com/2dChan/windpotential/internal/server"
	"github.com/2dChan/windpotential/render"
	"github.com/2dChan/windpotential/tessellate"
	"github.com/2dChan/windpotential/zonal"
	"github.com/prometheus/client_golang/prometheus"
)

// errReported marks failures already explained to the user.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, observability.NewMetrics())
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errReported):
		os.Exit(1)
	default:
		slog.Error("wind potential analysis failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	cfg         *config.Config
	listRegions bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("windpotential", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Phân tích tiềm năng gió tại Việt Nam / Wind Potential Analysis in Vietnam")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	o := &options{cfg: cfg}
	var configPath string
	fs.StringVar(&configPath, "config", "", "YAML run file applied before flags")
	fs.StringVar(&cfg.BoundaryFile, "boundary", cfg.BoundaryFile, "Đường dẫn đến file ranh giới dạng geojson / Path to boundary file in geojson format (required)")
	fs.StringVar(&cfg.RasterFile, "wind", cfg.RasterFile, "Đường dẫn đến file dữ liệu tốc độ gió dạng GeoTIFF / Path to wind speed data file in GeoTIFF format (required)")
	fs.StringVar(&cfg.ProvincesFile, "provinces", cfg.ProvincesFile, "Đường dẫn đến file ranh giới các tỉnh/thành phố dạng geojson / Path to provinces boundary file in geojson format")
	fs.StringVar(&cfg.Region, "region", cfg.Region, "Tên tỉnh/thành phố để phân tích / Name of province/city to analyze")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Thư mục đầu ra để lưu kết quả / Output directory to save results")
	fs.IntVar(&cfg.Points, "points", cfg.Points, "Số điểm để tạo đa giác Voronoi / Number of points to create Voronoi polygons")
	fs.Float64Var(&cfg.MinSpeed, "min-speed", cfg.MinSpeed, "Tốc độ gió tối thiểu cho khu vực tiềm năng cao (m/s) / Minimum wind speed for high potential areas (m/s)")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Tiền tố cho tên file đầu ra / Prefix for output file names")
	fs.BoolVar(&cfg.NoPlots, "no-plots", cfg.NoPlots, "Không tạo biểu đồ / Do not create plots")
	fs.BoolVar(&o.listRegions, "list-regions", false, "Liệt kê các tỉnh/thành phố có sẵn và thoát / List available provinces/cities and exit")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for site sampling")
	fs.IntVar(&cfg.RelaxSteps, "relax", cfg.RelaxSteps, "Lloyd relaxation rounds")
	fs.StringVar(&cfg.HTTPAddr, "serve", cfg.HTTPAddr, "Serve results on this address after the analysis, e.g. :8080")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			return nil, err
		}
		// Flags given on the command line win over the run file.
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// checkInputs prints a bilingual diagnostic for every missing input file.
func checkInputs(w io.Writer, cfg *config.Config) error {
	if cfg.BoundaryFile == "" || cfg.RasterFile == "" {
		fmt.Fprintln(w, "Lỗi: Cần cung cấp --boundary và --wind.")
		fmt.Fprintln(w, "Error: --boundary and --wind are required.")
		return errReported
	}
	var missing []string
	for _, path := range []string{cfg.BoundaryFile, cfg.RasterFile, cfg.ProvincesFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Lỗi: Không tìm thấy các file dữ liệu sau / Error: The following data files were not found:")
	for _, path := range missing {
		fmt.Fprintf(w, "  - %s\n", path)
	}
	return errReported
}

func printRegions(w io.Writer, regions []string) {
	fmt.Fprintln(w, "\nCác tỉnh/thành phố có sẵn để phân tích / Available provinces/cities for analysis:")
	for _, r := range regions {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, metrics *observability.Metrics) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg := o.cfg
	if err := checkInputs(stderr, cfg); err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a := analyzer.New(
		analyzer.WithLogger(logger),
		analyzer.WithMetrics(metrics),
		analyzer.WithZonalOptions(zonal.Options{Workers: cfg.Workers, BatchSize: cfg.BatchSize}),
	)
	if err := a.LoadData(cfg.BoundaryFile, cfg.RasterFile); err != nil {
		return err
	}

	if cfg.ProvincesFile != "" {
		if err := a.LoadProvinces(cfg.ProvincesFile); err != nil {
			return err
		}
		if o.listRegions {
			regions, err := a.ListRegions()
			if err != nil {
				return err
			}
			printRegions(stdout, regions)
			return nil
		}
	} else if o.listRegions {
		fmt.Fprintln(stderr, "Lỗi: Cần cung cấp file ranh giới tỉnh/thành phố (--provinces) để liệt kê các vùng.")
		fmt.Fprintln(stderr, "Error: Need to provide provinces boundary file (--provinces) to list regions.")
		return errReported
	}

	if cfg.Region != "" {
		if cfg.ProvincesFile == "" {
			fmt.Fprintln(stderr, "Lỗi: Cần cung cấp file ranh giới tỉnh/thành phố (--provinces) khi chọn vùng cụ thể.")
			fmt.Fprintln(stderr, "Error: Need to provide provinces boundary file (--provinces) when selecting a specific region.")
			return errReported
		}
		if err := a.SelectRegion(cfg.Region); err != nil {
			return err
		}
	}

	paths := a.Paths(cfg.OutputDir, cfg.Prefix, cfg.MinSpeed)
	if !cfg.NoPlots {
		if err := a.VisualizeWindData(paths.WindPNG); err != nil {
			logger.Warn("cannot create wind data plot", "error", err)
		}
	}

	topts := tessellate.DefaultOptions()
	topts.Points, topts.Seed, topts.RelaxSteps = cfg.Points, cfg.Seed, cfg.RelaxSteps
	if err := a.CreateVoronoiPolygons(topts); err != nil {
		return err
	}
	if err := a.CalculateWindStatistics(ctx); err != nil {
		return err
	}
	if _, err := a.FilterHighPotential(cfg.MinSpeed); err != nil {
		return err
	}
	if _, err := a.SaveResults(cfg.OutputDir, cfg.Prefix, cfg.MinSpeed); err != nil {
		return err
	}

	if !cfg.NoPlots {
		err := a.VisualizeHighPotential(paths.HighPNG, cfg.MinSpeed)
		switch {
		case errors.Is(err, render.ErrNothingToPlot):
			logger.Info("no high potential areas to plot", "min_speed", cfg.MinSpeed)
		case err != nil:
			logger.Warn("cannot create high potential plot", "error", err)
		}
	}

	if _, err := a.ExportDetailedStatistics(cfg.OutputDir, cfg.Prefix, cfg.MinSpeed); err != nil {
		return err
	}
	if cfg.Region != "" {
		if err := a.ExportMaskedRaster(paths.MaskedRaster); err != nil {
			logger.Warn("cannot export masked wind raster", "error", err)
		}
	}

	if !cfg.NoPlots {
		if err := a.CreateInteractiveVisualization(paths.InteractiveHTML, cfg.MinSpeed); err != nil {
			logger.Warn("cannot create interactive map", "error", err)
		}
	}

	fmt.Fprintln(stdout, "\nPhân tích tiềm năng gió đã hoàn tất! / Wind potential analysis completed!")
	fmt.Fprintf(stdout, "Kết quả đã được lưu vào thư mục: %s / Results saved to directory: %s\n", cfg.OutputDir, cfg.OutputDir)

	if cfg.HTTPAddr == "" {
		return nil
	}
	return serve(ctx, cfg, a, logger)
}

func serve(ctx context.Context, cfg *config.Config, a *analyzer.Analyzer, logger *slog.Logger) error {
	srv := server.NewServer(cfg.HTTPAddr, a, server.Options{
		MinSpeed:   cfg.MinSpeed,
		ResultsDir: cfg.OutputDir,
		Gatherer:   prometheus.DefaultGatherer,
	}, logger)

	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
