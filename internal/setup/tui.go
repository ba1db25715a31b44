package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/config"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "papertrade.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers collects the wizard inputs as typed by the user.
type Answers struct {
	Addr         string
	Backend      string
	DataDir      string
	SeedBalance  string
	PGHost       string
	PGPort       string
	PGUser       string
	PGPassword   string
	PGDatabase   string
	Quote        string
	ToleranceBps string
	Strict       bool
	APIKey       string
	APISecret    string
	CacheEnabled bool
	KafkaBroker  string
}

func defaultAnswers() Answers {
	d := config.Default()
	return Answers{
		Addr:         d.HTTP.Addr,
		Backend:      d.Ledger.Backend,
		DataDir:      d.Ledger.DataDir,
		SeedBalance:  d.Ledger.SeedBalance,
		PGHost:       d.Postgres.Host,
		PGPort:       strconv.Itoa(d.Postgres.Port),
		PGUser:       d.Postgres.User,
		PGDatabase:   d.Postgres.DBName,
		Quote:        d.Quote.Provider,
		ToleranceBps: "200",
		CacheEnabled: d.Cache.Enabled,
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultPath
	}
	a := defaultAnswers()
	var confirm bool

	screen("STEP 1: LEDGER")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where should the wallet and holdings live?\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Storage backend").
				Options(
					huh.NewOption("Write-ahead log (single node, durable)", config.BackendWAL),
					huh.NewOption("JSON files with intent journal", config.BackendFile),
					huh.NewOption("PostgreSQL", config.BackendPostgres),
					huh.NewOption("Memory (lost on exit)", config.BackendMemory),
				).
				Value(&a.Backend),
			huh.NewInput().
				Title("Starting balance").
				Description("Used only when the wallet does not exist yet").
				Value(&a.SeedBalance).
				Validate(validateBalance),
		),
	).Run()
	if err != nil {
		return err
	}

	switch a.Backend {
	case config.BackendWAL, config.BackendFile:
		screen("STEP 2: DATA DIRECTORY")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Data directory").
					Value(&a.DataDir).
					Validate(notEmpty("data directory")),
			),
		).Run()
	case config.BackendPostgres:
		screen("STEP 2: POSTGRES")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Host").Value(&a.PGHost).Validate(notEmpty("host")),
				huh.NewInput().Title("Port").Value(&a.PGPort).Validate(validatePort),
				huh.NewInput().Title("User").Value(&a.PGUser),
				huh.NewInput().Title("Password").Value(&a.PGPassword).EchoMode(huh.EchoModePassword),
				huh.NewInput().Title("Database").Value(&a.PGDatabase).Validate(notEmpty("database")),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	screen("STEP 3: SERVER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("e.g. :8080").
				Value(&a.Addr).
				Validate(notEmpty("listen address")),
			huh.NewConfirm().
				Title("Cache reads in memory?").
				Value(&a.CacheEnabled),
			huh.NewInput().
				Title("Kafka broker").
				Description("Leave empty to disable delta publishing").
				Value(&a.KafkaBroker),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: PRICE CHECK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Verify client prices against").
				Options(
					huh.NewOption("Nothing (trust the client)", config.QuoteNone),
					huh.NewOption("Alpaca market data", config.QuoteAlpaca),
				).
				Value(&a.Quote),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Quote == config.QuoteAlpaca {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Alpaca API key").Value(&a.APIKey),
				huh.NewInput().Title("Alpaca API secret").Value(&a.APISecret).EchoMode(huh.EchoModePassword),
				huh.NewInput().
					Title("Tolerance (basis points)").
					Description("200 = 2%").
					Value(&a.ToleranceBps).
					Validate(validateBps),
				huh.NewConfirm().
					Title("Reject trades when the quote is unavailable?").
					Value(&a.Strict),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Backend: %s\nSeed balance: %s\nListen: %s\nQuotes: %s\n",
		a.Backend, a.SeedBalance, a.Addr, a.Quote,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	cfg, err := a.Config()
	if err != nil {
		return err
	}
	if err := Write(path, cfg); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	time.Sleep(500 * time.Millisecond)
	return nil
}

// Config turns the answers into a validated configuration.
func (a Answers) Config() (*config.Config, error) {
	cfg := config.Default()
	cfg.HTTP.Addr = a.Addr
	cfg.Ledger.Backend = a.Backend
	cfg.Ledger.DataDir = a.DataDir
	cfg.Ledger.SeedBalance = a.SeedBalance
	cfg.Cache.Enabled = a.CacheEnabled

	if a.Backend == config.BackendPostgres {
		port, err := strconv.Atoi(a.PGPort)
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect postgres port %q", a.PGPort)
		}
		cfg.Postgres.Host = a.PGHost
		cfg.Postgres.Port = port
		cfg.Postgres.User = a.PGUser
		cfg.Postgres.Password = a.PGPassword
		cfg.Postgres.DBName = a.PGDatabase
		cfg.Postgres.CreateDatabase = true
	}

	cfg.Quote.Provider = a.Quote
	if a.Quote == config.QuoteAlpaca {
		bps, err := strconv.ParseInt(a.ToleranceBps, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect tolerance %q", a.ToleranceBps)
		}
		cfg.Quote.ToleranceBps = bps
		cfg.Quote.Strict = a.Strict
		cfg.Quote.APIKey = a.APIKey
		cfg.Quote.APISecret = a.APISecret
	}

	if a.KafkaBroker != "" {
		cfg.Kafka.Brokers = []string{a.KafkaBroker}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write stores cfg as YAML, creating parent directories.
func Write(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

func validateBalance(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("must be a port between 1 and 65535")
	}
	return nil
}

func validateBps(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}
