// Command lingolens detects objects in image files and prints translated labels.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/lingolens/app"
	"github.com/nvr-ai/lingolens/config"
	"github.com/nvr-ai/lingolens/images"
	"github.com/nvr-ai/lingolens/inference/detectors"
	"github.com/nvr-ai/lingolens/logger"
	"github.com/nvr-ai/lingolens/server"
	"github.com/nvr-ai/lingolens/translate"
	"github.com/nvr-ai/lingolens/util"
)

// result is one line of output.
type result struct {
	Path       string                     `json:"path"`
	Frame      int                        `json:"frame,omitempty"`
	Width      int                        `json:"width"`
	Height     int                        `json:"height"`
	Detections []server.DetectionResponse `json:"detections"`
	Error      string                     `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, detectors.New))
}

// run executes the command and returns the process exit code. Results go to stdout.
func run(args []string, stdout io.Writer, newInferencer app.InferencerFactory) int {
	var (
		configPath string
		imagePath  string
		dir        string
		lang       string
		confidence float64
		iou        float64
	)
	flags := flag.NewFlagSet("lingolens", flag.ContinueOnError)
	flags.StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML configuration")
	flags.StringVar(&imagePath, "image", "", "Path to an image file")
	flags.StringVar(&dir, "dir", "", "Directory of image files, frame-N files first")
	flags.StringVar(&lang, "lang", "", "Target language code, overrides translate.default_language")
	flags.Float64Var(&confidence, "confidence", -1, "Objectness threshold, overrides detector.confidence_threshold")
	flags.Float64Var(&iou, "iou", -1, "IoU threshold, overrides detector.iou_threshold")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if (imagePath == "") == (dir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -image or -dir is required")
		flags.Usage()
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if confidence >= 0 {
		cfg.Detector.ConfidenceThreshold = float32(confidence)
	}
	if iou >= 0 {
		cfg.Detector.IoUThreshold = float32(iou)
	}
	if lang == "" {
		lang = cfg.Translate.DefaultLanguage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// Logs go to stderr, stdout carries the results.
	if err := logger.Init(logger.ModeDevelopment); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()
	log := logger.Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, newInferencer, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return 1
	}
	defer a.Close()

	if _, ok := translate.FindLanguage(a.Languages, lang); !ok && lang != translate.DefaultSourceLanguage {
		log.Error("unsupported language", zap.String("lang", lang))
		return 1
	}

	files, err := inputs(imagePath, dir)
	if err != nil {
		log.Error("failed to load images", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	failed := 0
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		r := detect(ctx, a, f, lang)
		if r.Error != "" {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			log.Error("failed to write result", zap.Error(err))
			return 1
		}
	}

	log.Info("done", zap.Int("images", len(files)), zap.Int("failed", failed))
	if failed > 0 {
		return 1
	}
	return 0
}

// loadConfig reads path, falling back to the defaults when the default file is absent.
func loadConfig(path string) (config.Config, error) {
	if path == config.DefaultPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func inputs(imagePath, dir string) ([]util.ImageFile, error) {
	if dir != "" {
		return util.LoadDirectoryImageFiles(dir)
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", imagePath)
	}
	return []util.ImageFile{{Path: imagePath, Data: data, Frame: util.NoFrame}}, nil
}

func detect(ctx context.Context, a *app.App, f util.ImageFile, lang string) result {
	r := result{Path: f.Path}
	if f.Frame != util.NoFrame {
		r.Frame = f.Frame
	}

	img, err := images.Decode(f.Data)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Width, r.Height = img.Width, img.Height

	detections, err := a.Detector.Analyze(ctx, img)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Detections = server.Annotate(ctx, detections, a.Labels, a.Translator, lang, r.Width, r.Height)
	return r
}
