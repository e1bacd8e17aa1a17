package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formika/internal/api"
	"formika/internal/config"
	"formika/internal/logging"
	"formika/internal/oracle"
	"formika/internal/persist"
	"formika/internal/reconcile"
	"formika/internal/store"
)

func main() {
	cfg := config.LoadWithPath("formika.json")

	if err := logging.Initialize(cfg.JSONLog); err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer logging.Sync()

	// 1. Хранилище — один экземпляр на процесс, дальше только по ссылке
	st := store.New()

	// 2. Поднимаем снапшоты с диска
	pm := persist.New(st, cfg.DataDir, time.Duration(cfg.PersistIntervalSec)*time.Second)
	if err := pm.LoadAll(); err != nil {
		log.Fatalf("Ошибка загрузки снапшотов: %v", err)
	}
	fmt.Printf("Загружено меню: %d\n", len(st.Menus()))

	// 3. Оракул: без ключа работаем в режиме "только правила"
	var (
		oc        *oracle.Client
		apiOracle api.Oracle
		recOracle reconcile.Oracle
	)
	if cfg.AIAPIKey != "" {
		oc = oracle.NewClient(oracle.Config{
			APIKey:  cfg.AIAPIKey,
			BaseURL: cfg.AIBaseURL,
			Model:   cfg.AIModel,
		})
		apiOracle = oc
		recOracle = oc
	} else {
		fmt.Println("AI-ключ не задан: матчинг колонок работает только правилами")
	}

	// 4. Матчер колонок + каталоги синонимов
	rec := reconcile.New(recOracle)
	if err := rec.LoadCatalog(cfg.SynonymsDir); err != nil {
		log.Fatalf("Ошибка загрузки каталога синонимов: %v", err)
	}

	// 5. Фоновые снапшоты
	pm.Start()

	// 6. REST API
	deps := api.Deps{
		Store:       st,
		Reconciler:  rec,
		Oracle:      apiOracle,
		SynonymsDir: cfg.SynonymsDir,
	}
	go func() {
		fmt.Printf("Стартуем сервер Formika на :%s...\n", cfg.Port)
		if err := api.RunServer(":"+cfg.Port, deps); err != nil {
			log.Fatalf("Ошибка сервера: %v", err)
		}
	}()

	// Завершение: один синхронный проход снапшота и выходим
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Останавливаемся: финальный снапшот...")
	pm.Stop()
}
