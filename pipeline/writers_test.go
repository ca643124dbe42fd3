package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrapeworks/go-scrape-catalog/models"
)

func sampleRecord() *models.ProductRecord {
	return &models.ProductRecord{
		Title:         "Noise Cancelling Headphones",
		Brand:         models.String("Acme"),
		CurrentPrice:  models.Float(349.5),
		OriginalPrice: models.Float(499),
		Discount:      models.String("30% off"),
		Rating:        models.Float(4.6),
		ReviewsCount:  models.Int(1280),
		Image:         models.String("https://cdn.example.test/img/headphones.jpg"),
		URL:           "https://shop.example.test/en-ae/p/headphones-HX100",
		SKU:           models.String("headphones-HX100"),
		Currency:      "AED",
		ScrapedAt:     time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.ProductRecord{sampleRecord()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if rows[0][0] != "title" || rows[0][2] != "current_price" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "349.5" {
		t.Fatalf("current_price=%q, want 349.5", rows[1][2])
	}
}

func TestCSVWriterNullFieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	rec := sampleRecord()
	rec.Brand = nil
	rec.Rating = nil
	rec.ReviewsCount = nil

	if err := writer.Write([]*models.ProductRecord{rec}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if rows[1][1] != "" || rows[1][5] != "" || rows[1][6] != "" {
		t.Fatalf("nil fields should render empty, got %v", rows[1])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	rec := sampleRecord()
	rec.Description = nil

	if err := writer.Write([]*models.ProductRecord{rec}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded["currentPrice"] != 349.5 {
			t.Fatalf("currentPrice=%v, want 349.5", decoded["currentPrice"])
		}
		if value, present := decoded["description"]; !present || value != nil {
			t.Fatalf("missing fields should serialize as null, got %v", value)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	jsonPath := filepath.Join(dir, "products.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.ProductRecord{sampleRecord()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
