package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/ai/gemini"
	"github.com/spigell/jobmatch/internal/document"
	"github.com/spigell/jobmatch/internal/filestore"
	"github.com/spigell/jobmatch/internal/ingest"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/mail"
	"github.com/spigell/jobmatch/internal/match"
	"github.com/spigell/jobmatch/internal/reconcile"
	"github.com/spigell/jobmatch/internal/secrets"
	"github.com/spigell/jobmatch/internal/skills"
	"github.com/spigell/jobmatch/internal/store"
	"github.com/spigell/jobmatch/internal/store/gormstore"
	"github.com/spigell/jobmatch/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// application holds the wired components for one command invocation.
type application struct {
	config *Config
	logger *zap.Logger
	store  store.Store

	extractor *ai.Extractor
	pipeline  *ingest.Pipeline
	engine    *match.Engine
	mail      *mail.Queue

	closers []func() error
}

// bootstrap builds the logger and reads the config. Everything else is
// wired on demand by the with* helpers.
func bootstrap() (*application, error) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		return nil, fmt.Errorf("config is empty")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return &application{config: config, logger: l}, nil
}

// mustBootstrap is bootstrap for commands that cannot proceed without it.
func mustBootstrap() *application {
	a, err := bootstrap()
	if err != nil {
		log.Fatal(err)
	}
	return a
}

func (a *application) Close() {
	if a.mail != nil {
		a.mail.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing a component", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing the store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *application) withStore(ctx context.Context, migrate bool) error {
	cfg := a.config.Database
	if cfg == nil {
		return fmt.Errorf("database section is not configured")
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Driver), "memory") {
		a.logger.Warn("using the in-memory store, nothing is persisted")
		a.store = memstore.New()
		return nil
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: cfg.DSN,
		File:  cfg.DSNFile,
	})
	if err != nil {
		return fmt.Errorf("%w (set database.dsn or JOBMATCH_DATABASE_DSN)", err)
	}

	s, err := gormstore.Open(gormstore.Config{
		Driver:       cfg.Driver,
		DSN:          dsn,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		LogLevel:     cfg.LogLevel,
	}, a.logger)
	if err != nil {
		return err
	}
	a.store = s

	if migrate {
		return s.Migrate(ctx)
	}

	return nil
}

func (a *application) withExtractor(ctx context.Context) error {
	cfg := a.config.AI
	if cfg == nil || cfg.Gemini == nil {
		return fmt.Errorf("ai.gemini section is not configured")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	model := gemini.DefaultModelConfig()
	if cfg.Gemini.Model != "" {
		model.Model = cfg.Gemini.Model
	}
	model.Temperature = cfg.Gemini.Temperature
	model.TopP = cfg.Gemini.TopP
	model.TopK = cfg.Gemini.TopK
	model.MaxOutputTokens = cfg.Gemini.MaxOutputTokens
	model.SafetyThreshold = cfg.Gemini.SafetyThreshold
	model.MaxRetries = cfg.Gemini.MaxRetries

	// The generator tags its own logger with the provider and model.
	generator, err := gemini.NewGenerator(ctx, apiKey, model, a.logger)
	if err != nil {
		return err
	}

	extraction := ai.DefaultExtractorConfig()
	if x := cfg.Extraction; x != nil {
		extraction.MaxAttempts = x.MaxAttempts
		extraction.InitialBackoff = x.InitialBackoff
		extraction.MaxBackoff = x.MaxBackoff
		extraction.CallTimeout = x.CallTimeout
	}
	extraction.MaxLogLength = cfg.Gemini.MaxLogLength

	a.extractor = ai.NewExtractor(generator, extraction, logger.WithCommonFields(a.logger, "gemini", generator.Model()))
	return nil
}

func (a *application) withPipeline(ctx context.Context) error {
	if err := a.withStore(ctx, false); err != nil {
		return err
	}
	if err := a.withExtractor(ctx); err != nil {
		return err
	}

	reconciler, err := a.reconciler()
	if err != nil {
		return err
	}

	var docOpts []document.Option
	docOpts = append(docOpts, document.WithLogger(a.logger))
	if d := a.config.Documents; d != nil && d.Timeout > 0 {
		docOpts = append(docOpts, document.WithTimeout(d.Timeout))
	}

	opts := []ingest.Option{ingest.WithLogger(a.logger)}
	files, err := a.fileStore(ctx)
	if err != nil {
		return err
	}
	if files != nil {
		opts = append(opts, ingest.WithFileStore(files))
	}

	a.pipeline = ingest.New(a.store, a.extractor, document.New(docOpts...), reconciler, opts...)
	return nil
}

func (a *application) reconciler() (*reconcile.Reconciler, error) {
	var file, mode string
	if cfg := a.config.Skills; cfg != nil {
		file, mode = cfg.SynonymsFile, cfg.Lookup
	}

	synonyms, err := skills.Load(file)
	if err != nil {
		return nil, err
	}

	lookup, err := reconcile.ParseLookup(mode)
	if err != nil {
		return nil, err
	}

	r := reconcile.New(synonyms, reconcile.WithLookup(lookup), reconcile.WithLogger(a.logger))
	a.logger.Debug("entity reconciler ready", zap.Stringer("lookup", r.Lookup()))

	return r, nil
}

// fileStore returns nil when document retention is disabled.
func (a *application) fileStore(ctx context.Context) (filestore.Store, error) {
	cfg := a.config.Files
	if cfg == nil {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "local":
		return filestore.NewLocal(cfg.Dir, a.logger)
	case "minio":
		if cfg.MinIO == nil {
			return nil, fmt.Errorf("files.minio section is not configured")
		}
		secret, err := secrets.Load(secrets.Source{
			Name:  "minio secret key",
			Value: cfg.MinIO.SecretKey,
			File:  cfg.MinIO.SecretKeyFile,
		})
		if err != nil {
			return nil, err
		}
		return filestore.NewMinIO(ctx, filestore.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: secret,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		}, a.logger)
	default:
		return nil, fmt.Errorf("unsupported files backend %q", cfg.Backend)
	}
}

// withEngine wires the match engine. The AI scorer and the mail queue are
// only built when scoring is needed.
func (a *application) withEngine(ctx context.Context, scoring bool) error {
	if err := a.withStore(ctx, false); err != nil {
		return err
	}

	var opts []match.Option
	opts = append(opts, match.WithLogger(a.logger))
	if m := a.config.Match; m != nil {
		opts = append(opts,
			match.WithShortlistThreshold(m.ShortlistThreshold),
			match.WithSearchThreshold(m.SearchThreshold),
		)
	}

	var scorer match.Scorer
	var sender mail.Sender
	if scoring {
		if err := a.withExtractor(ctx); err != nil {
			return err
		}
		scorer = match.NewAIScorer(a.extractor)

		if err := a.withMail(ctx); err != nil {
			return err
		}
		sender = a.mail
	}

	a.engine = match.New(a.store, scorer, sender, opts...)
	return nil
}

func (a *application) withMail(ctx context.Context) error {
	cfg := a.config.Mail
	if cfg == nil {
		cfg = &MailConfig{}
	}

	var transport mail.Transport
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", "log":
		transport = mail.NewLogTransport(a.logger)
	case "smtp":
		if cfg.SMTP == nil {
			return fmt.Errorf("mail.smtp section is not configured")
		}
		password, err := secrets.Optional(secrets.Source{
			Name:  "smtp password",
			Value: cfg.SMTP.Password,
			File:  cfg.SMTP.PasswordFile,
		})
		if err != nil {
			return err
		}
		t, err := mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: password,
			From:     cfg.From,
		})
		if err != nil {
			return err
		}
		transport = t
	case "amqp":
		if cfg.AMQP == nil {
			return fmt.Errorf("mail.amqp section is not configured")
		}
		t, err := mail.NewAMQPTransport(mail.AMQPConfig{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, t.Close)
		transport = t
	default:
		return fmt.Errorf("unsupported mail transport %q", cfg.Transport)
	}

	a.mail = mail.NewQueue(transport, mail.QueueConfig{
		Workers:      cfg.Workers,
		Size:         cfg.QueueSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, a.logger)
	a.mail.Start(ctx)

	return nil
}

// redacted returns a copy of c that is safe to log.
func redacted(c *Config) *Config {
	out := *c
	const mask = "***"

	if c.Database != nil && c.Database.DSN != "" {
		db := *c.Database
		db.DSN = mask
		out.Database = &db
	}
	if c.AI != nil && c.AI.Gemini != nil && c.AI.Gemini.APIKey != "" {
		aiCfg := *c.AI
		g := *c.AI.Gemini
		g.APIKey = mask
		aiCfg.Gemini = &g
		out.AI = &aiCfg
	}
	if c.Mail != nil && c.Mail.SMTP != nil && c.Mail.SMTP.Password != "" {
		m := *c.Mail
		smtp := *c.Mail.SMTP
		smtp.Password = mask
		m.SMTP = &smtp
		out.Mail = &m
	}
	if c.Files != nil && c.Files.MinIO != nil && c.Files.MinIO.SecretKey != "" {
		f := *c.Files
		minio := *c.Files.MinIO
		minio.SecretKey = mask
		f.MinIO = &minio
		out.Files = &f
	}

	return &out
}

func parseID(flag, value string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		log.Fatalf("--%s: %q is not a valid id", flag, value)
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
