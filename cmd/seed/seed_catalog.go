package main

import (
	"encoding/json"
	"log"
	"os"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/model"
	"finverse-chatbot/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// seed loads a small demo catalog for local development. Existing rows are
// matched by slug and left untouched.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, "warn", database.DefaultPoolConfig())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo catalog...")

	institutions := map[string]*model.Institution{}
	for _, inst := range []model.Institution{
		{Name: "First National Bank", Slug: "first-national-bank", CountryCode: "US", LicenseNumber: "FNB-001", IsActive: true},
		{Name: "People's Credit Union", Slug: "peoples-credit-union", CountryCode: "US", LicenseNumber: "PCU-114", IsActive: true},
		{Name: "Sampath Bank PLC", Slug: "sampath-bank", CountryCode: "LK", LicenseNumber: "CBSL-0042", IsActive: true},
	} {
		institutions[inst.Slug] = firstOrCreateInstitution(db, inst)
	}

	types := map[string]*model.ProductType{}
	for category, typeNames := range map[string][]string{
		"Savings": {"Savings Account", "Fixed Deposit"},
		"Loans":   {"Personal Loan", "Home Loan", "Car Loan"},
		"Cards":   {"Credit Card"},
	} {
		c := model.ProductCategory{Name: category}
		if err := db.Where("name = ?", category).FirstOrCreate(&c).Error; err != nil {
			log.Fatalf("Error creating category %s: %v", category, err)
		}
		for _, name := range typeNames {
			t := model.ProductType{Name: name, CategoryId: &c.Id}
			if err := db.Where("name = ?", name).FirstOrCreate(&t).Error; err != nil {
				log.Fatalf("Error creating product type %s: %v", name, err)
			}
			types[name] = &t
		}
	}

	products := []struct {
		slug        string
		name        string
		institution string
		productType string
		description string
		details     entity.ProductDetails
		featured    bool
	}{
		{
			slug: "fnb-high-yield-savings", name: "High Yield Savings Account", institution: "first-national-bank", productType: "Savings Account",
			description: "A savings account with a competitive variable rate and no monthly fee for young professionals.",
			details:     entity.ProductDetails{InterestRate: ptr(3.5), MinimumBalance: ptr(500), MonthlyFee: ptr(0), Features: []string{"No monthly fee", "Mobile banking"}},
			featured:    true,
		},
		{
			slug: "fnb-personal-loan", name: "Flexi Personal Loan", institution: "first-national-bank", productType: "Personal Loan",
			description: "Unsecured personal loan with flexible repayment terms.",
			details:     entity.ProductDetails{InterestRate: ptr(11.9), AnnualPercentageRate: ptr(12.4), OriginationFee: ptr(1.5), LoanAmountMin: ptr(1000), LoanAmountMax: ptr(50000), TermMin: ptr(12), TermMax: ptr(60), Requirements: []string{"Proof of income", "Valid ID"}},
		},
		{
			slug: "pcu-car-loan", name: "Auto Advantage Loan", institution: "peoples-credit-union", productType: "Car Loan",
			description: "Low-rate financing for new and used vehicles for credit union members.",
			details:     entity.ProductDetails{InterestRate: ptr(6.2), AnnualPercentageRate: ptr(6.5), LoanAmountMax: ptr(80000), TermMax: ptr(84)},
		},
		{
			slug: "pcu-rewards-card", name: "Member Rewards Credit Card", institution: "peoples-credit-union", productType: "Credit Card",
			description: "Cashback card with no foreign transaction fees, suited to frequent travellers.",
			details:     entity.ProductDetails{AnnualPercentageRate: ptr(18.9), AnnualFee: ptr(0), Features: []string{"1.5% cashback", "No foreign transaction fees"}},
		},
		{
			slug: "sampath-travel-saver", name: "Travel Saver", institution: "sampath-bank", productType: "Savings Account",
			description: "Foreign currency savings account for people who travel a lot.",
			details:     entity.ProductDetails{InterestRate: ptr(2.1), MinimumBalance: ptr(100), Features: []string{"Hold USD, EUR and GBP", "Free international transfers"}},
			featured:    true,
		},
		{
			slug: "sampath-home-loan", name: "Sampath Home Loan", institution: "sampath-bank", productType: "Home Loan",
			description: "Housing loan for purchase or construction of a home.",
			details:     entity.ProductDetails{InterestRate: ptr(12.5), LoanAmountMax: ptr(50000000), TermMax: ptr(300), Requirements: []string{"Title deeds", "Salary slips"}},
		},
	}

	for _, p := range products {
		var existing model.Product
		if err := db.Where("slug = ?", p.slug).First(&existing).Error; err == nil {
			log.Printf("Product '%s' already exists, skipping...", p.slug)
			continue
		}

		details, err := json.Marshal(p.details)
		if err != nil {
			log.Fatalf("Error encoding details of %s: %v", p.slug, err)
		}

		typeId := types[p.productType].Id
		product := model.Product{
			Name:          p.name,
			Slug:          p.slug,
			Description:   p.description,
			Details:       datatypes.JSON(details),
			IsFeatured:    p.featured,
			IsActive:      true,
			InstitutionId: institutions[p.institution].Id,
			ProductTypeId: &typeId,
		}
		if err := db.Create(&product).Error; err != nil {
			log.Printf("Error creating product '%s': %v", p.slug, err)
		} else {
			log.Printf("Created product: %s", p.name)
		}
	}

	log.Println("Catalog seeding completed! Run cmd/ingest to build the embeddings.")
}

func firstOrCreateInstitution(db *gorm.DB, inst model.Institution) *model.Institution {
	if err := db.Where("slug = ?", inst.Slug).FirstOrCreate(&inst).Error; err != nil {
		log.Fatalf("Error creating institution %s: %v", inst.Name, err)
	}
	return &inst
}

func ptr(v float64) *float64 {
	return &v
}
