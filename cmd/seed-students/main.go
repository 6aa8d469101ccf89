package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sinovhub/sinov-backend/internal/config"
	"github.com/sinovhub/sinov-backend/internal/database"
	"github.com/sinovhub/sinov-backend/internal/logger"
	"github.com/sinovhub/sinov-backend/internal/model"
	"github.com/sinovhub/sinov-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)

	names := []string{
		"Aziz Karimov", "Malika Yusupova", "Jasur Toshmatov", "Nilufar Rahimova", "Bekzod Ergashev",
		"Dildora Saidova", "Sardor Umarov", "Gulnoza Islomova", "Javohir Nazarov", "Sevara Abdullayeva",
		"Otabek Qodirov", "Zarina Mirzayeva", "Ulugbek Sobirov", "Madina Tursunova", "Shohruh Olimov",
		"Kamola Xolmatova", "Farrux Davronov", "Nargiza Sharipova", "Timur Ismoilov", "Lola Ahmedova",
		"Doston Berdiyev", "Shahnoza Vohidova", "Akmal Ruziyev", "Feruza Norboyeva", "Jahongir Aliyev",
		"Umida Qosimova", "Rustam Bobojonov", "Yulduz Hamidova", "Sanjar Mahmudov", "Ozoda Rasulova",
	}

	// All seeded students share one known password for classroom demos.
	hash, err := bcrypt.GenerateFromPassword([]byte("sinov2026"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	gradeLevels := []string{"9", "10", "11"}
	classGroups := []string{"A", "B"}

	fmt.Printf("=== Seeding %d Students ===\n", len(names))

	successCount := 0
	for i, name := range names {
		student := &model.Student{
			Name:         name,
			Username:     fmt.Sprintf("student%d", i+1),
			PasswordHash: string(hash),
			GradeLevel:   gradeLevels[i%len(gradeLevels)],
			ClassGroup:   classGroups[i%len(classGroups)],
		}

		if err := studentRepo.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s (%s): %v\n", student.Name, student.Username, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, len(names))
}
