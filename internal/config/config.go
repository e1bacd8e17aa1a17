package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port               string `json:"port"`
	DataDir            string `json:"dataDir"`            // каталог артефактов-снапшотов
	SynonymsDir        string `json:"synonymsDir"`        // YAML-каталоги синонимов для матчера
	PersistIntervalSec int    `json:"persistIntervalSec"` // период автоснапшота
	JSONLog            bool   `json:"jsonLog"`

	// AI-оракул (схемы, экстракция, доводка матчинга колонок)
	AIAPIKey  string `json:"aiApiKey"`
	AIBaseURL string `json:"aiBaseUrl"`
	AIModel   string `json:"aiModel"`
}

func def() Config {
	return Config{
		Port:               "8080",
		DataDir:            "data",
		SynonymsDir:        "synonyms",
		PersistIntervalSec: 60,
		JSONLog:            false,

		AIAPIKey:  "",
		AIBaseURL: "",
		AIModel:   "",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	return loadWithArgs(jsonPath, os.Args[1:])
}

// loadWithArgs — тело загрузки с явными аргументами. Флаги живут на своём
// FlagSet: перечитывание конфига по -config создаёт новый набор, а не
// регистрирует флаги повторно на flag.CommandLine.
func loadWithArgs(jsonPath string, args []string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("FORMIKA_PORT", cfg.Port)
	cfg.DataDir = getenv("FORMIKA_DATA_DIR", cfg.DataDir)
	cfg.SynonymsDir = getenv("FORMIKA_SYNONYMS_DIR", cfg.SynonymsDir)
	cfg.PersistIntervalSec = getenvInt("FORMIKA_PERSIST_INTERVAL", cfg.PersistIntervalSec)
	cfg.JSONLog = getenvBool("FORMIKA_JSON_LOG", cfg.JSONLog)

	cfg.AIAPIKey = getenv("FORMIKA_AI_API_KEY", cfg.AIAPIKey)
	cfg.AIBaseURL = getenv("FORMIKA_AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIModel = getenv("FORMIKA_AI_MODEL", cfg.AIModel)

	// Flags overrides
	fs := flag.NewFlagSet("formika", flag.ExitOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	port := fs.String("port", cfg.Port, "HTTP port")
	dataDir := fs.String("data", cfg.DataDir, "Snapshot directory")
	synDir := fs.String("synonyms", cfg.SynonymsDir, "Synonym catalog directory")
	interval := fs.Int("persist-interval", cfg.PersistIntervalSec, "Snapshot interval, seconds")
	jsonLog := fs.String("json-log", strconv.FormatBool(cfg.JSONLog), "JSON log output (true/false)")

	aiKey := fs.String("ai-api-key", cfg.AIAPIKey, "AI oracle API key")
	aiURL := fs.String("ai-base-url", cfg.AIBaseURL, "AI oracle base URL")
	aiModel := fs.String("ai-model", cfg.AIModel, "AI oracle model")

	_ = fs.Parse(args)

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return loadWithArgs(*configPath, args)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DataDir = strings.TrimSpace(*dataDir)
	cfg.SynonymsDir = strings.TrimSpace(*synDir)
	if *interval > 0 {
		cfg.PersistIntervalSec = *interval
	}
	cfg.JSONLog = strings.EqualFold(strings.TrimSpace(*jsonLog), "true") ||
		strings.TrimSpace(*jsonLog) == "1"

	cfg.AIAPIKey = strings.TrimSpace(*aiKey)
	cfg.AIBaseURL = strings.TrimSpace(*aiURL)
	cfg.AIModel = strings.TrimSpace(*aiModel)

	return cfg
}
