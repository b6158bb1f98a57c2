// seed da de alta las integraciones con marketplaces de una empresa y emite los tokens
// de servicio para sus webhooks. El alta de marketplaces no tiene ruta HTTP.
//
// Uso: go run ./cmd/seed --file seed.yaml [--migrate]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/infrastructure/postgres"
	"github.com/jhoicas/fbs-core/pkg/config"
	"github.com/jhoicas/fbs-core/pkg/jwt"
	"github.com/jhoicas/fbs-core/pkg/logger"
)

type seedFile struct {
	CompanyID    string            `mapstructure:"company_id"`
	Marketplaces []seedMarketplace `mapstructure:"marketplaces"`
	Tokens       []seedToken       `mapstructure:"tokens"`
}

type seedMarketplace struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
	FBS    bool   `mapstructure:"fbs"`
}

type seedToken struct {
	UserID string        `mapstructure:"user_id"`
	Role   string        `mapstructure:"role"`
	TTL    time.Duration `mapstructure:"ttl"`
}

func main() {
	flags := pflag.NewFlagSet("seed", pflag.ExitOnError)
	file := flags.StringP("file", "f", "seed.yaml", "archivo YAML con marketplaces y tokens")
	migrate := flags.Bool("migrate", false, "aplicar migraciones antes de sembrar")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "seed"})

	seed, err := readSeed(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("leer semilla")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()
	if *migrate || cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}

	repo := postgres.NewMarketplaceRepository(pool)
	now := time.Now().UTC()
	for _, sm := range seed.Marketplaces {
		m := &entity.Marketplace{
			ID:           sm.ID,
			CompanyID:    seed.CompanyID,
			Name:         sm.Name,
			Type:         entity.MarketplaceType(sm.Type),
			APIURL:       sm.APIURL,
			APIKey:       sm.APIKey,
			IsFBSEnabled: sm.FBS,
			IsConnected:  sm.APIURL != "",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Type == "" {
			m.Type = entity.MarketplaceOther
		}
		if err := repo.Upsert(ctx, m); err != nil {
			log.Fatal().Err(err).Str("marketplace", sm.Name).Msg("alta de marketplace")
		}
		log.Info().Str("marketplace_id", m.ID).Str("name", m.Name).Bool("connected", m.IsConnected).Msg("marketplace registrado")
	}

	for _, st := range seed.Tokens {
		ttl := st.TTL
		if ttl <= 0 {
			ttl = time.Duration(cfg.JWT.Expiration) * time.Minute
		}
		tok, err := jwt.Generate(cfg.JWT.Secret, cfg.JWT.Issuer, jwt.Identity{
			UserID:    st.UserID,
			CompanyID: seed.CompanyID,
			Role:      st.Role,
		}, ttl)
		if err != nil {
			log.Fatal().Err(err).Str("user_id", st.UserID).Msg("emitir token")
		}
		fmt.Printf("%s\t%s\t%s\n", st.UserID, st.Role, tok)
	}
}

func readSeed(path string) (*seedFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var s seedFile
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	if s.CompanyID == "" {
		return nil, fmt.Errorf("company_id es requerido")
	}
	return &s, nil
}
