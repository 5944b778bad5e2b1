package masters

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/errs"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service manages the branch, certificate-type and user masters.
type Service struct {
	DB *gorm.DB
}

var (
	branchIDRe = regexp.MustCompile(`^BR[0-9]{3}$`)
	certTypeRe = regexp.MustCompile(`^[A-Z0-9_]+$`)
)

// UpsertBranch creates or updates a branch master row.
func (s *Service) UpsertBranch(ctx context.Context, branchID, branchName string, isActive bool) (*models.Branch, error) {
	id := strings.ToUpper(strings.TrimSpace(branchID))
	name := strings.TrimSpace(branchName)
	if id == "" {
		return nil, errs.Validation("Branch ID is required.")
	}
	if !branchIDRe.MatchString(id) {
		return nil, errs.Validation("Branch ID must match BR### (e.g., BR001).")
	}
	if name == "" {
		return nil, errs.Validation("Branch Name is required.")
	}

	var branch models.Branch
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("branch_id = ?", id).First(&branch).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			branch = models.Branch{BranchID: id, BranchName: name, IsActive: isActive}
			if err := tx.Create(&branch).Error; err != nil {
				return errs.Persistence(err)
			}
		case err != nil:
			return errs.Persistence(err)
		default:
			branch.BranchName = name
			branch.IsActive = isActive
			if err := tx.Save(&branch).Error; err != nil {
				return errs.Persistence(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

// SetBranchActive toggles a branch.
func (s *Service) SetBranchActive(ctx context.Context, branchID string, isActive bool) error {
	id := strings.ToUpper(strings.TrimSpace(branchID))
	res := s.DB.WithContext(ctx).Model(&models.Branch{}).
		Where("branch_id = ?", id).
		Update("is_active", isActive)
	if res.Error != nil {
		return errs.Persistence(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("Branch not found.")
	}
	return nil
}

// ListBranches returns branches ordered by name.
func (s *Service) ListBranches(ctx context.Context) ([]models.Branch, error) {
	var branches []models.Branch
	if err := s.DB.WithContext(ctx).Order("branch_name ASC").Find(&branches).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return branches, nil
}

// UpsertCertificateType creates or updates a certificate type.
func (s *Service) UpsertCertificateType(ctx context.Context, certTypeID, name string, isActive bool) (*models.CertificateType, error) {
	id := strings.ToUpper(strings.TrimSpace(certTypeID))
	nm := strings.TrimSpace(name)
	if id == "" {
		return nil, errs.Validation("Certificate Type ID is required.")
	}
	if !certTypeRe.MatchString(id) {
		return nil, errs.Validation("Certificate Type ID must be uppercase letters/numbers/underscore.")
	}
	if nm == "" {
		return nil, errs.Validation("Certificate Type Name is required.")
	}

	var ct models.CertificateType
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("cert_type_id = ?", id).First(&ct).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ct = models.CertificateType{CertTypeID: id, Name: nm, IsActive: isActive}
			if err := tx.Create(&ct).Error; err != nil {
				return errs.Persistence(err)
			}
		case err != nil:
			return errs.Persistence(err)
		default:
			ct.Name = nm
			ct.IsActive = isActive
			if err := tx.Save(&ct).Error; err != nil {
				return errs.Persistence(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// SetCertificateTypeActive toggles a certificate type.
func (s *Service) SetCertificateTypeActive(ctx context.Context, certTypeID string, isActive bool) error {
	id := strings.ToUpper(strings.TrimSpace(certTypeID))
	res := s.DB.WithContext(ctx).Model(&models.CertificateType{}).
		Where("cert_type_id = ?", id).
		Update("is_active", isActive)
	if res.Error != nil {
		return errs.Persistence(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("Certificate type not found.")
	}
	return nil
}

// ListCertificateTypes returns certificate types ordered by name.
func (s *Service) ListCertificateTypes(ctx context.Context) ([]models.CertificateType, error) {
	var types []models.CertificateType
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&types).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return types, nil
}

// UpsertUserInput describes a user master upsert. Password is only applied
// when non-empty (hashed here; verified upstream).
type UpsertUserInput struct {
	Username    string
	Password    string
	DisplayName string
	Role        models.UserRole
	BranchID    string
	IsActive    bool
}

// UpsertUser creates or updates a user master row. Branch users must name an
// existing branch; HQ admins never carry one.
func (s *Service) UpsertUser(ctx context.Context, in UpsertUserInput) (*models.AppUser, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" {
		return nil, errs.Validation("Username is required.")
	}
	if in.Role != models.RoleHQAdmin && in.Role != models.RoleBranchUser {
		return nil, errs.Validation("Role must be HQ_ADMIN or BRANCH_USER.")
	}

	branch := strings.ToUpper(strings.TrimSpace(in.BranchID))
	var user models.AppUser
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Role == models.RoleBranchUser {
			if branch == "" {
				return errs.Validation("Branch is required for BRANCH_USER.")
			}
			var n int64
			if err := tx.Model(&models.Branch{}).Where("branch_id = ?", branch).Count(&n).Error; err != nil {
				return errs.Persistence(err)
			}
			if n == 0 {
				return errs.Validation("Branch %s does not exist.", branch)
			}
		} else {
			branch = ""
		}

		err := tx.Where("username = ?", username).First(&user).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return errs.Persistence(err)
		}

		if isNew && in.Password == "" {
			return errs.Validation("Password is required for new users.")
		}
		if in.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
			if err != nil {
				return errs.Persistence(err)
			}
			user.PasswordHash = string(hash)
		}

		user.Username = username
		user.Role = in.Role
		user.IsActive = in.IsActive
		if branch != "" {
			user.BranchID = &branch
		} else {
			user.BranchID = nil
		}
		if display := strings.TrimSpace(in.DisplayName); display != "" {
			user.DisplayName = &display
		}

		if isNew {
			if err := tx.Create(&user).Error; err != nil {
				return errs.Persistence(err)
			}
			return nil
		}
		if err := tx.Save(&user).Error; err != nil {
			return errs.Persistence(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserActive toggles a user.
func (s *Service) SetUserActive(ctx context.Context, username string, isActive bool) error {
	u := strings.ToLower(strings.TrimSpace(username))
	res := s.DB.WithContext(ctx).Model(&models.AppUser{}).
		Where("username = ?", u).
		Update("is_active", isActive)
	if res.Error != nil {
		return errs.Persistence(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("User not found.")
	}
	return nil
}

// ListUsers returns users ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]models.AppUser, error) {
	var users []models.AppUser
	if err := s.DB.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, errs.Persistence(err)
	}
	return users, nil
}
