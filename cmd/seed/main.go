package main

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/db"
	"github.com/botlog/backend/internal/models"
	"github.com/botlog/backend/internal/services"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// SeedData is the structure of the seed JSON file.
type SeedData struct {
	Users []struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Role      string `json:"role"`
	} `json:"users"`
	Models []struct {
		Project string `json:"project"`
		Name    string `json:"name"`
		Version string `json:"version"`
		Tag     string `json:"tag"`
	} `json:"models"`
	Examples []struct {
		Project string `json:"project"`
		Text    string `json:"text"`
		Intent  string `json:"intent"`
	} `json:"examples"`
	Utterances []struct {
		Project    string  `json:"project"`
		Text       string  `json:"text"`
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	} `json:"utterances"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	db.Connect()
	db.AutoMigrate()

	path := "data/seed.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read seed file %s: %v", path, err)
	}

	var seed SeedData
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("Failed to parse seed file: %v", err)
	}

	seedUsers(&seed)
	seedModels(&seed)
	seedExamples(&seed)
	seedUtterances(&seed)

	log.Println("Database seeding completed")
}

func seedUsers(seed *SeedData) {
	for _, u := range seed.Users {
		var existing models.User
		if err := db.DB.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			log.Printf("User already exists: %s", u.Email)
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Error hashing password for %s: %v", u.Email, err)
			continue
		}

		role := models.UserRole(u.Role)
		switch role {
		case models.RoleAdmin, models.RoleAnnotator, models.RoleViewer:
		default:
			role = models.RoleViewer
		}

		user := models.User{
			Email:     u.Email,
			Password:  string(hashed),
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      role,
		}
		if err := db.DB.Create(&user).Error; err != nil {
			log.Printf("Error creating user %s: %v", u.Email, err)
		} else {
			log.Printf("Created user: %s (%s)", user.Email, user.Role)
		}
	}
}

func seedModels(seed *SeedData) {
	modelService := services.NewModelService(db.DB)
	for _, m := range seed.Models {
		model := models.NLUModel{
			Name:      m.Name,
			Version:   m.Version,
			TrainedAt: time.Now().UTC(),
		}
		if err := modelService.RegisterModel(m.Project, &model); err != nil {
			log.Printf("Error registering model %s: %v", m.Name, err)
			continue
		}
		log.Printf("Registered model: %s", m.Name)

		if m.Tag != "" {
			if _, err := modelService.TagModel(m.Project, m.Name, m.Tag); err != nil {
				log.Printf("Error tagging model %s: %v", m.Name, err)
			}
		}
	}
}

func seedExamples(seed *SeedData) {
	dataService := services.NewDataService(db.DB)
	for _, e := range seed.Examples {
		example := models.TrainingExample{
			Text:   e.Text,
			Intent: e.Intent,
		}
		if err := dataService.CreateExample(e.Project, &example); err != nil {
			log.Printf("Error creating example %q: %v", e.Text, err)
		}
	}
}

func seedUtterances(seed *SeedData) {
	cfg := config.Load()
	modelService := services.NewModelService(db.DB)
	dataService := services.NewDataService(db.DB)
	logsService := services.NewLogsService(db.DB, modelService, dataService, cfg)

	for _, u := range seed.Utterances {
		// Each seeded utterance gets its own synthetic conversation.
		conversationID := uuid.NewString()
		event := models.ParseEvent{
			Text: u.Text,
			Intent: models.RankedIntent{
				Name:       u.Intent,
				Confidence: u.Confidence,
			},
			ConversationID: &conversationID,
		}
		if _, err := logsService.IngestParseEvent(u.Project, &event); err != nil {
			log.Printf("Error ingesting utterance %q: %v", u.Text, err)
		}
	}
}
