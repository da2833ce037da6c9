package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"poolops-backend/internal/config"
	"poolops-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf/v2"
)

// ReceiptStore is the persistence surface for receipts. Create is
// idempotent per payment via the payment_id unique index.
type ReceiptStore interface {
	NextReceiptNumber(ctx context.Context, orgID string, year int) (string, error)
	Create(ctx context.Context, receipt *models.Receipt) error
	GetByPaymentID(ctx context.Context, orgID, paymentID string) (*models.Receipt, error)
}

// ReceiptService numbers receipts, renders them as PDF and archives the
// PDF to R2. Every step is best-effort: a payment is never held hostage
// by a rendering or upload failure, it just shows up under missing
// receipts for a retry.
type ReceiptService struct {
	receipts ReceiptStore
	s3Client *s3.Client
	bucket   string
	orgName  string
}

func NewReceiptService(receipts ReceiptStore, r2 config.R2Config, orgName string) *ReceiptService {
	svc := &ReceiptService{receipts: receipts, bucket: r2.Bucket, orgName: orgName}

	if r2.AccessKey == "" || r2.Endpoint == "" {
		log.Println("[Receipts] R2 not configured, PDF archival disabled")
		return svc
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			r2.AccessKey, r2.SecretKey, "")),
		awsconfig.WithRegion(r2.Region),
	)
	if err != nil {
		log.Printf("[Receipts] R2 config failed, PDF archival disabled: %v", err)
		return svc
	}

	svc.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r2.Endpoint)
	})
	return svc
}

// IssueReceipt creates the receipt row, renders the PDF and uploads it.
// Safe to call twice for the same payment; the second call finds the
// existing row and stops. Intended to run in its own goroutine.
func (s *ReceiptService) IssueReceipt(ctx context.Context, payment *models.Payment, invoice *models.Invoice) {
	if existing, err := s.receipts.GetByPaymentID(ctx, payment.OrgID, payment.ID); err == nil && existing != nil {
		return
	}

	number, err := s.receipts.NextReceiptNumber(ctx, payment.OrgID, payment.ProcessedAt.UTC().Year())
	if err != nil {
		log.Printf("[Receipts] numbering failed for payment %s: %v", payment.ID, err)
		return
	}

	receipt := &models.Receipt{
		ID:            uuid.New().String(),
		OrgID:         payment.OrgID,
		PaymentID:     payment.ID,
		ReceiptNumber: number,
	}

	pdfBytes, err := s.renderPDF(receipt, payment, invoice)
	if err != nil {
		log.Printf("[Receipts] PDF render failed for payment %s: %v", payment.ID, err)
		pdfBytes = nil
	}

	if pdfBytes != nil && s.s3Client != nil {
		key := fmt.Sprintf("receipts/%s/%s.pdf", payment.OrgID, number)
		if err := s.upload(ctx, key, pdfBytes); err != nil {
			log.Printf("[Receipts] R2 upload failed for %s: %v", number, err)
		} else {
			receipt.PDFKey = key
		}
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		log.Printf("[Receipts] create failed for payment %s: %v", payment.ID, err)
	}
}

func (s *ReceiptService) renderPDF(receipt *models.Receipt, payment *models.Payment, invoice *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, fmt.Sprintf("%s - Payment Receipt", s.orgName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Receipt %s", receipt.ReceiptNumber), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment Details", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Invoice: %s", invoice.InvoiceNumber), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Date: %s", payment.ProcessedAt.UTC().Format("02-Jan-2006")), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Method: %s", payment.Method), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Amount: %s", formatCents(payment.AmountCents, invoice.Currency)), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Invoice Status", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, fmt.Sprintf("Total: %s", formatCents(invoice.TotalCents, invoice.Currency)), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, fmt.Sprintf("Paid: %s", formatCents(invoice.PaidCents, invoice.Currency)), "1", 0, "C", false, 0, "")
	pdf.CellFormat(64, 8, fmt.Sprintf("Balance: %s", formatCents(invoice.BalanceCents(), invoice.Currency)), "1", 1, "C", false, 0, "")

	if invoice.BalanceCents() == 0 {
		pdf.SetFillColor(200, 255, 200)
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(190, 10, "FULLY PAID", "1", 1, "C", true, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReceiptService) upload(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	return err
}

func formatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, cents/100, cents%100)
}
