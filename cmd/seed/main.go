package main

import (
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commonwealth/internal/config"
	"commonwealth/internal/database"
	"commonwealth/internal/domain"
	jwtsvc "commonwealth/internal/pkg/jwt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to seed a production database")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrate failed:", err)
	}

	// Cleanup old data (read rows first, they reference notifications and subscriptions)
	log.Println("Cleaning old data...")
	for _, table := range []string{"notifications_read", "notifications", "subscriptions", "webhooks", "addresses", "profiles", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("clean %s: %v", table, err)
		}
	}

	// ================== COMMUNITIES ==================
	log.Println("Creating communities...")
	communities := []domain.Community{
		{ID: "ethereum", Name: "Ethereum", IconURL: "https://commonwealth.im/static/img/protocols/eth.png"},
		{ID: "edgeware", Name: "Edgeware", IconURL: "https://commonwealth.im/static/img/protocols/edg.png"},
		{ID: "osmosis", Name: "Osmosis"},
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "icon_url"}),
	}).Create(&communities).Error; err != nil {
		log.Fatal("communities:", err)
	}

	// ================== USERS ==================
	log.Println("Creating users...")
	people := []struct {
		email    string
		profile  string
		address  string
		interval domain.EmailInterval
	}{
		{"alice@commonwealth.test", "alice", "0xA11CE00000000000000000000000000000000001", domain.IntervalDaily},
		{"bob@commonwealth.test", "bob", "0xB0B0000000000000000000000000000000000002", domain.IntervalWeekly},
		{"carol@commonwealth.test", "", "0xCA401000000000000000000000000000000000003", domain.IntervalNever},
	}
	users := make([]domain.User, 0, len(people))
	for _, p := range people {
		u := domain.User{Email: p.email, EmailNotificationInterval: p.interval}
		mustCreate(db, &u)
		users = append(users, u)

		var profileID *int64
		if p.profile != "" {
			profile := domain.Profile{UserID: u.ID, ProfileName: p.profile}
			mustCreate(db, &profile)
			profileID = &profile.ID
		}
		for _, c := range communities {
			mustCreate(db, &domain.Address{Address: p.address, CommunityID: c.ID, UserID: &u.ID, ProfileID: profileID})
		}
	}

	// ================== SUBSCRIPTIONS ==================
	log.Println("Creating subscriptions...")
	for i, u := range users {
		for _, c := range communities {
			chain := c.ID
			mustCreate(db, &domain.Subscription{
				SubscriberID:   u.ID,
				CategoryID:     domain.CategoryNewThread,
				ObjectID:       c.ID,
				IsActive:       true,
				ImmediateEmail: i == 0,
				ChainID:        &chain,
			})
			mustCreate(db, &domain.Subscription{
				SubscriberID: u.ID,
				CategoryID:   domain.CategoryChainEvent,
				ObjectID:     c.ID + "-democracy-proposed",
				IsActive:     true,
				ChainID:      &chain,
			})
		}
		threadID := int64(1)
		mustCreate(db, &domain.Subscription{
			SubscriberID:   u.ID,
			CategoryID:     domain.CategoryNewComment,
			ObjectID:       "discussion_1",
			IsActive:       true,
			ImmediateEmail: true,
			ThreadID:       &threadID,
		})
	}

	// ================== WEBHOOKS ==================
	log.Println("Creating webhooks...")
	target := cfg.FeedbackWebhookURL
	if target == "" {
		target = "https://hooks.slack.com/services/T000/B000/dev"
	}
	mustCreate(db, &domain.Webhook{
		URL:         target,
		CommunityID: "ethereum",
		Categories:  []string{string(domain.CategoryNewThread), string(domain.CategoryChainEvent)},
	})

	// ================== TOKENS ==================
	tokens := jwtsvc.New(cfg.JWTSecret, 30*24*time.Hour)
	log.Println("Seed completed!")
	log.Println("Test accounts:")
	for _, u := range users {
		token, err := tokens.GenerateToken(u.ID, "member")
		if err != nil {
			log.Fatal("token:", err)
		}
		log.Printf("  %s (id=%d, digest=%s)\n    Bearer %s", u.Email, u.ID, u.EmailNotificationInterval, token)
	}
	log.Printf("Producer token: Bearer %s", cfg.InternalToken)
}

func mustCreate(db *gorm.DB, v any) {
	if err := db.Create(v).Error; err != nil {
		log.Fatalf("create %T: %v", v, err)
	}
}
