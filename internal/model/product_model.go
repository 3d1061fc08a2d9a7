package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Institution struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Slug          string    `gorm:"type:varchar(255);uniqueIndex"`
	LicenseNumber string    `gorm:"type:varchar(100)"`
	CountryCode   string    `gorm:"type:varchar(2)"`
	IsActive      bool      `gorm:"default:true;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Institution) TableName() string {
	return "institutions"
}

type ProductCategory struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text"`
}

func (ProductCategory) TableName() string {
	return "product_categories"
}

type ProductType struct {
	Id          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string           `gorm:"type:varchar(255);not null"`
	Description string           `gorm:"type:text"`
	CategoryId  *uuid.UUID       `gorm:"type:uuid;index"`
	Category    *ProductCategory `gorm:"foreignKey:CategoryId"`
}

func (ProductType) TableName() string {
	return "product_types"
}

type Product struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string         `gorm:"type:varchar(255);not null"`
	Slug          string         `gorm:"type:varchar(255);index"`
	Description   string         `gorm:"type:text"`
	Details       datatypes.JSON `gorm:"type:jsonb"`
	IsFeatured    bool           `gorm:"default:false"`
	IsActive      bool           `gorm:"default:true;index"`
	InstitutionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Institution   *Institution   `gorm:"foreignKey:InstitutionId"`
	ProductTypeId *uuid.UUID     `gorm:"type:uuid;index"`
	ProductType   *ProductType   `gorm:"foreignKey:ProductTypeId"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
