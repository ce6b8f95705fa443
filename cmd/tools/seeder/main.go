package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	supplierIDs := seedSuppliers(db)
	productIDs := seedProducts(db, supplierIDs)
	seedBatches(db, supplierIDs, productIDs)

	log.Println("Seeding completed successfully!")
}

func seedSuppliers(db *sql.DB) map[string]string {
	suppliers := []string{
		"PT Kimia Farma Trading",
		"PT Enseval Putera Megatrading",
		"PT Anugerah Pharmindo Lestari",
		"PT Bina San Prima",
	}

	fmt.Println("Seeding Suppliers...")
	ids := make(map[string]string)
	for _, name := range suppliers {
		var id string
		err := db.QueryRow(`
			INSERT INTO suppliers (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, name).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed supplier %s: %v", name, err)
			continue
		}
		ids[name] = id
	}
	return ids
}

func seedProducts(db *sql.DB, supplierIDs map[string]string) map[string]string {
	products := []struct {
		Name     string
		Category string
		Supplier string
		MinStock int64
		HasVAT   bool
	}{
		{"Paracetamol 500mg (strip)", "analgesic", "PT Kimia Farma Trading", 50, true},
		{"Amoxicillin 500mg (strip)", "antibiotic", "PT Enseval Putera Megatrading", 30, true},
		{"OBH Combi 100ml", "cough-cold", "PT Bina San Prima", 20, true},
		{"Vitamin C 250mg (botol)", "supplement", "PT Anugerah Pharmindo Lestari", 40, true},
		{"Amlodipine 10mg (strip)", "cardiovascular", "PT Kimia Farma Trading", 25, true},
		{"Metformin 500mg (strip)", "antidiabetic", "PT Enseval Putera Megatrading", 25, true},
		{"Oralit sachet", "rehydration", "PT Bina San Prima", 60, false},
		{"Betadine 15ml", "antiseptic", "PT Anugerah Pharmindo Lestari", 15, true},
		{"Salbutamol inhaler", "respiratory", "PT Enseval Putera Megatrading", 10, true},
		{"Masker medis (box)", "medical-supply", "PT Bina San Prima", 20, false},
	}

	fmt.Println("Seeding Products...")
	ids := make(map[string]string)
	for _, p := range products {
		var supplierID any
		if sid, ok := supplierIDs[p.Supplier]; ok {
			supplierID = sid
		}
		var id string
		err := db.QueryRow(`
			INSERT INTO products (name, category, supplier_id, min_stock, has_vat)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id;
		`, p.Name, p.Category, supplierID, p.MinStock, p.HasVAT).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}
		ids[p.Name] = id
	}
	return ids
}

func seedBatches(db *sql.DB, supplierIDs, productIDs map[string]string) {
	type batch struct {
		Product         string
		Supplier        string
		BatchNumber     string
		ExpiryDate      string
		OriginalCost    string
		DiscountPercent string
		DiscountedCost  string
		VATRate         string
		HasVAT          bool
		MinExVAT        string
		MinFinal        string
		TargetExVAT     string
		TargetFinal     string
		Quantity        int64
	}

	// Price columns follow the pricing ladder at the 1.33 markup and 16% VAT:
	// target from the original cost, minimum from the discounted cost, each
	// tier rounded up to the nearest 5 after VAT.
	batches := []batch{
		{
			Product: "Paracetamol 500mg (strip)", Supplier: "PT Kimia Farma Trading",
			BatchNumber: "PCM-2403", ExpiryDate: "2027-03-31",
			OriginalCost: "100", DiscountPercent: "10", DiscountedCost: "90",
			VATRate: "16", HasVAT: true,
			MinExVAT: "119.70", MinFinal: "140", TargetExVAT: "133.00", TargetFinal: "155",
			Quantity: 200,
		},
		{
			Product: "Amoxicillin 500mg (strip)", Supplier: "PT Enseval Putera Megatrading",
			BatchNumber: "AMX-2401", ExpiryDate: "2026-12-31",
			OriginalCost: "250",
			VATRate:      "16", HasVAT: true,
			TargetExVAT: "332.50", TargetFinal: "390",
			Quantity: 120,
		},
		{
			Product: "OBH Combi 100ml", Supplier: "PT Bina San Prima",
			BatchNumber: "OBH-2405", ExpiryDate: "2027-06-30",
			OriginalCost: "120", DiscountPercent: "5", DiscountedCost: "114",
			VATRate: "16", HasVAT: true,
			MinExVAT: "151.62", MinFinal: "180", TargetExVAT: "159.60", TargetFinal: "190",
			Quantity: 80,
		},
		{
			Product: "Vitamin C 250mg (botol)", Supplier: "PT Anugerah Pharmindo Lestari",
			BatchNumber: "VTC-2402", ExpiryDate: "2028-01-31",
			OriginalCost: "80",
			VATRate:      "16", HasVAT: true,
			TargetExVAT: "106.40", TargetFinal: "125",
			Quantity: 150,
		},
		{
			Product: "Oralit sachet", Supplier: "PT Bina San Prima",
			BatchNumber: "ORL-2406",
			OriginalCost: "5",
			VATRate:      "0", HasVAT: false,
			TargetExVAT: "6.65", TargetFinal: "10",
			Quantity: 400,
		},
	}

	fmt.Println("Seeding Batches with opening stock...")
	for _, b := range batches {
		productID, ok := productIDs[b.Product]
		if !ok {
			continue
		}
		var supplierID any
		if sid, ok := supplierIDs[b.Supplier]; ok {
			supplierID = sid
		}

		var invoiceID string
		err := db.QueryRow(`
			INSERT INTO purchase_invoices (supplier_id, invoice_number, created_by)
			VALUES ($1, $2, 'seeder')
			ON CONFLICT (supplier_id, invoice_number) DO UPDATE SET created_by = EXCLUDED.created_by
			RETURNING id;
		`, supplierID, "SEED-"+b.BatchNumber).Scan(&invoiceID)
		if err != nil {
			log.Printf("Failed to seed invoice for %s: %v", b.BatchNumber, err)
			continue
		}

		var expiry any
		if b.ExpiryDate != "" {
			expiry = b.ExpiryDate
		}

		var batchID string
		err = db.QueryRow(`
			INSERT INTO product_batches (
				product_id, supplier_id, purchase_invoice_id, batch_number, expiry_date,
				original_cost, discount_percent, discounted_cost, vat_rate, has_vat,
				minimum_price_ex_vat, minimum_price_final, target_price_ex_vat, target_price_final,
				quantity_received
			)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::numeric, NULLIF($8, '')::numeric, $9, $10,
				NULLIF($11, '')::numeric, NULLIF($12, '')::numeric, $13, $14, $15)
			RETURNING id;
		`, productID, supplierID, invoiceID, b.BatchNumber, expiry,
			b.OriginalCost, b.DiscountPercent, b.DiscountedCost, b.VATRate, b.HasVAT,
			b.MinExVAT, b.MinFinal, b.TargetExVAT, b.TargetFinal, b.Quantity).Scan(&batchID)
		if err != nil {
			log.Printf("Failed to seed batch %s: %v", b.BatchNumber, err)
			continue
		}

		_, err = db.Exec(`
			INSERT INTO stock_movements (batch_id, movement_type, quantity, reference_type, reference_id, actor)
			VALUES ($1, 'purchase', $2, 'purchase_invoice', $3, 'seeder');
		`, batchID, b.Quantity, invoiceID)
		if err != nil {
			log.Printf("Failed to seed opening movement for %s: %v", b.BatchNumber, err)
		}
	}
}
