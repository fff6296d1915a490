package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"resort/internal/app/uow"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/money"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

type catalogFixtures struct {
	Currency string           `json:"currency"`
	Rooms    []roomFixture    `json:"rooms"`
	Services []serviceFixture `json:"services"`
	Yoga     []yogaFixture    `json:"yoga_sessions"`
	Users    []userFixture    `json:"users"`
}

type roomFixture struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Capacity      int      `json:"capacity"`
	PricePerNight int64    `json:"price_per_night"`
	Amenities     []string `json:"amenities"`
	Available     bool     `json:"available"`
}

type serviceFixture struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Unit        string `json:"unit"`
	Active      bool   `json:"active"`
	MinAge      *int   `json:"min_age"`
	MaxAge      *int   `json:"max_age"`
}

type yogaFixture struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Instructor  string `json:"instructor"`
	StartsAt    string `json:"starts_at"`
	DurationMin int    `json:"duration_min"`
	Capacity    int    `json:"capacity"`
	Price       int64  `json:"price"`
	Active      bool   `json:"active"`
}

type userFixture struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// loadFixtures seeds the catalog. Existing records with the same id are
// left alone so restarts against a persistent store are harmless.
func loadFixtures(ctx context.Context, path string, factory uow.UoWFactory, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("catalog fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fx catalogFixtures
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	currency := fx.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}

	_, err = uow.Run(ctx, factory, uow.TxOptions{}, 2, func(ctx context.Context, unit uow.UnitOfWork) (struct{}, error) {
		now := time.Now()
		for _, r := range fx.Rooms {
			if _, err := unit.Rooms().ByID(ctx, domainrooms.RoomID(r.ID)); err == nil {
				continue
			}
			price, err := money.New(r.PricePerNight, currency)
			if err != nil {
				logger.Error("fixture room invalid", "room_id", r.ID, "error", err)
				continue
			}
			room, err := domainrooms.NewRoom(domainrooms.CreateParams{
				ID:            domainrooms.RoomID(r.ID),
				Name:          r.Name,
				Type:          r.Type,
				Description:   r.Description,
				Capacity:      r.Capacity,
				PricePerNight: price,
				Amenities:     r.Amenities,
				Available:     r.Available,
				Now:           now,
			})
			if err != nil {
				logger.Error("fixture room invalid", "room_id", r.ID, "error", err)
				continue
			}
			if err := unit.Rooms().Save(ctx, room); err != nil {
				return struct{}{}, fmt.Errorf("save room %s: %w", r.ID, err)
			}
		}
		for _, s := range fx.Services {
			if _, err := unit.Services().ByID(ctx, domaincatalog.ServiceID(s.ID)); err == nil {
				continue
			}
			svc := &domaincatalog.Service{
				ID:          domaincatalog.ServiceID(s.ID),
				Name:        s.Name,
				Category:    s.Category,
				Description: s.Description,
				Price:       money.Money{Amount: s.Price, Currency: currency},
				Unit:        domaincatalog.PriceUnit(s.Unit),
				Active:      s.Active,
			}
			if s.MinAge != nil || s.MaxAge != nil {
				svc.AgeRestriction = &domaincatalog.AgeRestriction{MinAge: s.MinAge, MaxAge: s.MaxAge}
			}
			if err := svc.Validate(); err != nil {
				logger.Error("fixture service invalid", "service_id", s.ID, "error", err)
				continue
			}
			if err := unit.Services().Save(ctx, svc); err != nil {
				return struct{}{}, fmt.Errorf("save service %s: %w", s.ID, err)
			}
		}
		for _, y := range fx.Yoga {
			if _, err := unit.Yoga().ByID(ctx, domainyoga.SessionID(y.ID)); err == nil {
				continue
			}
			startsAt, err := time.Parse(time.RFC3339, y.StartsAt)
			if err != nil {
				logger.Error("fixture yoga session invalid", "session_id", y.ID, "error", err)
				continue
			}
			sess := &domainyoga.Session{
				ID:         domainyoga.SessionID(y.ID),
				Title:      y.Title,
				Instructor: y.Instructor,
				StartsAt:   startsAt.UTC(),
				Duration:   time.Duration(y.DurationMin) * time.Minute,
				Capacity:   y.Capacity,
				Price:      money.Money{Amount: y.Price, Currency: currency},
				Active:     y.Active,
			}
			if err := sess.Validate(); err != nil {
				logger.Error("fixture yoga session invalid", "session_id", y.ID, "error", err)
				continue
			}
			if err := unit.Yoga().Save(ctx, sess); err != nil {
				return struct{}{}, fmt.Errorf("save yoga session %s: %w", y.ID, err)
			}
		}
		for _, u := range fx.Users {
			usr, err := domainuser.NewUser(domainuser.CreateParams{
				ID:        domainuser.ID(u.ID),
				Email:     u.Email,
				Name:      u.Name,
				Phone:     u.Phone,
				Role:      domainuser.Role(u.Role),
				CreatedAt: now,
			})
			if err != nil {
				logger.Error("fixture user invalid", "user_id", u.ID, "error", err)
				continue
			}
			if err := unit.Users().Save(ctx, usr); err != nil {
				return struct{}{}, fmt.Errorf("save user %s: %w", u.ID, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	logger.Info("catalog fixtures imported", "rooms", len(fx.Rooms), "services", len(fx.Services), "yoga_sessions", len(fx.Yoga), "users", len(fx.Users))
	return nil
}
