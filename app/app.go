// Package app - Wires the configured collaborators into a running detector.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nvr-ai/lingolens/config"
	"github.com/nvr-ai/lingolens/detector"
	"github.com/nvr-ai/lingolens/inference"
	"github.com/nvr-ai/lingolens/models"
	"github.com/nvr-ai/lingolens/models/yolov5"
	"github.com/nvr-ai/lingolens/monitor"
	"github.com/nvr-ai/lingolens/translate"
)

// InferencerFactory loads the model runtime named by the inference configuration.
type InferencerFactory func(cfg inference.Config, layout yolov5.Layout) (inference.Inferencer, error)

// App holds everything a lingolens binary needs after startup.
type App struct {
	Config     config.Config
	Detector   *detector.Detector
	Labels     *models.LabelTable
	Translator *translate.LabelTranslator
	Languages  []translate.Language
	Metrics    *monitor.Metrics
	Logger     *zap.Logger

	inferencer inference.Inferencer
	redis      *redis.Client
}

// New builds the application from cfg.
//
// Arguments:
//   - ctx: Bounds the startup calls to Redis and the translation API.
//   - cfg: The validated configuration.
//   - newInferencer: Loads the model runtime.
//   - logger: The logger, zap.L() when nil.
//
// Returns:
//   - *App: The application. Close releases it.
//   - error: An error if the model or the dictionary cannot be loaded.
func New(ctx context.Context, cfg config.Config, newInferencer InferencerFactory, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.L()
	}
	if newInferencer == nil {
		return nil, errors.New("no inferencer factory")
	}

	a := &App{
		Config:  cfg,
		Metrics: monitor.New(),
		Logger:  logger,
	}

	layout := yolov5.Layout{Anchors: cfg.Detector.Anchors, Classes: cfg.Detector.Classes}
	inferencer, err := newInferencer(cfg.Inference, layout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load model")
	}
	a.inferencer = inferencer

	a.Detector, err = detector.New(cfg.Detector,
		detector.WithInferencer(inferencer),
		detector.WithLogger(logger),
		detector.WithMetrics(a.Metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Labels, err = models.LabelsFor(a.Detector.Model())
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Labels.Len() != cfg.Detector.Classes {
		logger.Warn("label table size differs from model classes",
			zap.String("labels_family", string(a.Labels.Style)),
			zap.Int("labels", a.Labels.Len()),
			zap.Int("classes", cfg.Detector.Classes),
		)
	}

	if err := a.setupTranslation(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("lingolens ready",
		zap.String("engine", string(cfg.Inference.Engine)),
		zap.String("model", cfg.Inference.ModelPath),
		zap.Int("labels", a.Labels.Len()),
		zap.Int("languages", len(a.Languages)),
		zap.Bool("cache", a.redis != nil),
	)
	return a, nil
}

func (a *App) setupTranslation(ctx context.Context) error {
	cfg := a.Config.Translate

	var dict *translate.Dictionary
	if cfg.DictionaryPath != "" {
		d, err := translate.LoadDictionary(cfg.DictionaryPath)
		if err != nil {
			return err
		}
		dict = d
	}

	if !cfg.Online {
		a.Translator = translate.NewLabelTranslator(dict, nil, a.Logger, a.Metrics)
		a.Languages = translate.DefaultTranslationLanguages()
		return nil
	}

	client := translate.NewLingvaClient(cfg.BaseURL, cfg.Timeout)
	a.redis = NewRedisClient(ctx, a.Config.Cache, a.Logger)
	online := translate.NewCachingTranslator(a.redis, a.Config.Cache.TTL, client, a.Config.Cache.Namespace)

	a.Translator = translate.NewLabelTranslator(dict, online, a.Logger, a.Metrics)
	a.Languages = translate.LoadLanguages(ctx, client, a.Logger)
	return nil
}

// NewRedisClient connects to the configured Redis. It returns nil, so that the
// cache is bypassed, when no address is configured or the server does not answer.
func NewRedisClient(ctx context.Context, cfg config.Cache, logger *zap.Logger) *redis.Client {
	if !cfg.Enabled() {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, translation cache disabled",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return rdb
}

// Close releases the model runtime and the Redis connection.
func (a *App) Close() {
	if a.inferencer != nil {
		if err := a.inferencer.Close(); err != nil {
			a.Logger.Warn("failed to close inferencer", zap.Error(err))
		}
		a.inferencer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis", zap.Error(err))
		}
		a.redis = nil
	}
}
