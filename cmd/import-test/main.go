package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/database"
	"github.com/stemsi/testhub-backend/internal/logger"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/repository"
	"github.com/stemsi/testhub-backend/internal/service"
	"github.com/stemsi/testhub-backend/internal/spreadsheet"
	"github.com/stemsi/testhub-backend/internal/validator"
)

func main() {
	form := model.ImportTestForm{}
	file := flag.String("file", "", "Path to the .xlsx question sheet")
	flag.StringVar(&form.Title, "title", "", "Test title")
	flag.StringVar(&form.Description, "description", "", "Test description")
	flag.IntVar(&form.DurationMinutes, "duration", 30, "Duration in minutes")
	flag.StringVar(&form.Difficulty, "difficulty", string(model.DifficultyBeginner), "BEGINNER, INTERMEDIATE or ADVANCED")
	flag.StringVar(&form.AgeGroup, "age-group", string(model.AgeGroupKids10To12), "KIDS_7_9, KIDS_10_12, TEENS_13_15 or TEENS_16_18")
	flag.Parse()

	if *file == "" || strings.TrimSpace(form.Title) == "" {
		fmt.Println("Usage: import-test -file questions.xlsx -title \"Fractions\" [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "import-test")
	validator.Setup()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open question sheet")
	}
	questions, err := spreadsheet.ReadQuestions(f)
	_ = f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read question sheet")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	testService := service.NewTestService(repository.NewTestRepository(pool), rdb, cfg, log)

	test, err := testService.Create(ctx, 0, form.Request(questions))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}

	fmt.Printf("Imported test %q with %d questions (ID: %s)\n", test.Title, len(test.Questions), test.ID)
}
