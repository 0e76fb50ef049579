package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"tshe-crm/pkg/config"
	"tshe-crm/pkg/database"
	"tshe-crm/pkg/jwt"
	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/repo/persistent"

	"gorm.io/gorm"
)

type seedUser struct {
	name  string
	email string
	role  models.UserRole
}

var seedUsers = []seedUser{
	{"Avery Admin", "admin@tshe.test", models.RoleAdmin},
	{"Morgan Marketing", "marketing.manager@tshe.test", models.RoleManager},
	{"Riley Admissions", "admissions.manager@tshe.test", models.RoleManager},
	{"Sam Staff", "staff@tshe.test", models.RoleStaff},
}

func main() {
	var (
		password   string
		printToken bool
	)
	flag.StringVar(&password, "password", "password123", "password for every seeded user")
	flag.BoolVar(&printToken, "tokens", true, "print a development JWT per user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	ctx := context.Background()
	users, err := seedAccounts(db, password, log)
	if err != nil {
		log.Error("Failed to seed users: %v", err)
		panic(err)
	}

	if err := seedPosts(ctx, persistent.NewPostRepository(db), users, log); err != nil {
		log.Error("Failed to seed posts: %v", err)
		panic(err)
	}

	if printToken {
		jwtService := jwt.NewService(cfg.JWTSecret)
		for _, u := range users {
			token, err := jwtService.GenerateToken(u.ID, string(u.Role))
			if err != nil {
				log.Error("Failed to sign token for %s: %v", u.Email, err)
				continue
			}
			fmt.Printf("%-30s %-8s %s\n", u.Email, u.Role, token)
		}
	}

	log.Info("Database seeded successfully!")
}

func seedAccounts(db *gorm.DB, password string, log *logger.Logger) ([]models.User, error) {
	users := make([]models.User, 0, len(seedUsers))
	for _, s := range seedUsers {
		var existing models.User
		err := db.Where("email = ?", s.email).First(&existing).Error
		if err == nil {
			log.Info("User %s already exists, skipping", s.email)
			users = append(users, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up %s: %w", s.email, err)
		}

		user := models.User{Name: s.name, Email: s.email, Role: s.role, IsActive: true}
		if err := user.SetPassword(password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", s.email, err)
		}
		log.Info("Created user: %s (%s)", user.Name, user.Role)
		users = append(users, user)
	}
	return users, nil
}

// seedPosts creates one post in each workflow state, authored by the staff user.
func seedPosts(ctx context.Context, repo persistent.PostRepository, users []models.User, log *logger.Logger) error {
	creator, managerA, managerB := users[3].ID, users[1].ID, users[2].ID

	existing, err := repo.List(ctx, persistent.PostFilter{CreatedBy: creator, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("Posts already seeded, skipping")
		return nil
	}

	start := time.Now().UTC().Truncate(24 * time.Hour).Add(7 * 24 * time.Hour)
	newPost := func(caption string) *entity.Post {
		return &entity.Post{
			Caption:   caption,
			StartDate: start,
			EndDate:   start.Add(14 * 24 * time.Hour),
			Status:    entity.StatusPendingApproval,
			CreatedBy: creator,
			Approvals: entity.NewApprovals([]string{managerA, managerB}),
		}
	}

	pending := newPost("Open day registrations are live")
	if err := repo.Create(ctx, pending); err != nil {
		return err
	}
	log.Info("Created pending post %s", pending.ID)

	approved := newPost("Meet the new nursing faculty")
	if err := repo.Create(ctx, approved); err != nil {
		return err
	}
	now := time.Now().UTC()
	err = repo.Transaction(ctx, func(tx persistent.PostRepository) error {
		for _, a := range approved.Approvals {
			if err := tx.UpdateApprovalStatus(ctx, a.ID, entity.ApprovalApproved, nil, now); err != nil {
				return err
			}
		}
		return tx.SetPostStatus(ctx, approved.ID, entity.StatusApproved)
	})
	if err != nil {
		return err
	}
	log.Info("Created approved post %s", approved.ID)

	rejected := newPost("Scholarship deadline extended")
	if err := repo.Create(ctx, rejected); err != nil {
		return err
	}
	reason := "Deadline not confirmed by finance"
	err = repo.Transaction(ctx, func(tx persistent.PostRepository) error {
		if err := tx.UpdateApprovalStatus(ctx, rejected.Approvals[0].ID, entity.ApprovalRejected, &reason, now); err != nil {
			return err
		}
		return tx.SetPostStatus(ctx, rejected.ID, entity.StatusRejected)
	})
	if err != nil {
		return err
	}
	log.Info("Created rejected post %s", rejected.ID)
	return nil
}
