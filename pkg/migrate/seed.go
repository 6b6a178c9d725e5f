package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
)

// SeedAccount is one bootstrap elevated account.
type SeedAccount struct {
	Name  string
	Phone string
	Role  enums.Role
}

// SeedAccountsFromConfig lists the configured bootstrap accounts. Accounts
// with an empty phone are skipped.
func SeedAccountsFromConfig(cfg config.SeedConfig) []SeedAccount {
	accounts := []SeedAccount{}
	if strings.TrimSpace(cfg.SuperadminPhone) != "" {
		accounts = append(accounts, SeedAccount{Name: cfg.SuperadminName, Phone: cfg.SuperadminPhone, Role: enums.RoleSuperadmin})
	}
	if strings.TrimSpace(cfg.AdminPhone) != "" {
		accounts = append(accounts, SeedAccount{Name: cfg.AdminName, Phone: cfg.AdminPhone, Role: enums.RoleAdmin})
	}
	return accounts
}

// Seed creates each account unless its phone already exists. It returns the
// number of rows created.
func Seed(ctx context.Context, conn *gorm.DB, accounts []SeedAccount) (int, error) {
	created := 0
	for _, acct := range accounts {
		normalized, err := phone.Normalize(acct.Phone)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", acct.Role, err)
		}
		if !acct.Role.IsValid() {
			return created, fmt.Errorf("seed %s: invalid role", acct.Role)
		}

		var existing models.User
		err = conn.WithContext(ctx).Where("phone = ?", normalized).First(&existing).Error
		switch {
		case err == nil:
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return created, fmt.Errorf("lookup %s: %w", normalized, err)
		}

		user := models.User{Name: strings.TrimSpace(acct.Name), Phone: normalized, Role: acct.Role}
		if user.Name == "" {
			user.Name = string(acct.Role)
		}
		if err := conn.WithContext(ctx).Create(&user).Error; err != nil {
			return created, fmt.Errorf("create %s: %w", normalized, err)
		}
		created++
	}
	return created, nil
}
