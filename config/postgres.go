package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
)

const ssmTimeout = 5 * time.Second

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	TimeZone string `mapstructure:"timezone" yaml:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`

	CreateDatabase bool `mapstructure:"create_database" yaml:"create_database"`
	// SSMPasswordParam names the SSM parameter holding the password in prod.
	SSMPasswordParam string `mapstructure:"ssm_password_param" yaml:"ssm_password_param,omitempty"`
	Environment      string `mapstructure:"environment" yaml:"environment"`
}

// DSN builds the connection string for dbname. In prod the password is read from SSM.
func (cfg PostgresConfig) DSN(ctx context.Context, dbname string) (string, error) {
	password := cfg.Password
	if cfg.Environment == "prod" && cfg.SSMPasswordParam != "" {
		var err error
		password, err = parameterStoreValue(ctx, cfg.SSMPasswordParam, true)
		if err != nil {
			return "", err
		}
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, password, dbname, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn, nil
}

func parameterStoreValue(ctx context.Context, name string, decrypt bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ssmTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", errors.Wrap(err, "load aws config")
	}

	client := ssm.NewFromConfig(awsCfg)
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", errors.Wrapf(err, "get ssm parameter %s", name)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", errors.Errorf("ssm parameter %s has no value", name)
	}
	return *result.Parameter.Value, nil
}
