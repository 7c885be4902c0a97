package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string  `yaml:"logLevel" json:"logLevel"`
	Endpoint string  `yaml:"endpoint" json:"endpoint"`
	Captcha  Captcha `yaml:"captcha" json:"captcha"`
	Server   Server  `yaml:"server" json:"server"`
}

type Captcha struct {
	PublicKey    string        `yaml:"publicKey" json:"publicKey"`
	PrivateKey   string        `yaml:"privateKey" json:"privateKey"`
	LanguageCode string        `yaml:"languageCode" json:"languageCode"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

type Server struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	SigningKey        string        `yaml:"signingKey" json:"signingKey"`
	SessionDuration   time.Duration `yaml:"sessionDuration" json:"sessionDuration"`
	ChallengeDuration time.Duration `yaml:"challengeDuration" json:"challengeDuration"`
}

func New(v *viper.Viper) (Config, error) {
	c := Config{}
	if v == nil {
		return c, errors.New("viper not initialized")
	}
	if v.ConfigFileUsed() != "" {
		err := v.ReadInConfig()
		if err != nil {
			return c, err
		}
	}
	err := v.Unmarshal(&c)
	return c, err
}
