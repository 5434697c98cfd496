package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"serviceflow/sequence"
)

func newTestService(t *testing.T) (*Service, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	codes := sequence.NewAllocator(sequence.NewMemoryCounterStore()).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	return NewService(repo, codes), repo
}

func TestIssue_ComputesGSTAndMintsYearlyCode(t *testing.T) {
	svc, _ := newTestService(t)

	bill, err := svc.Issue(context.Background(), IssueParams{
		RequestCode:  "REQ-001",
		CustomerID:   "cust-1",
		CustomerName: "Asha",
		VendorID:     "v1",
		VendorName:   "Ravi Plumbing",
		Description:  "pipe replacement",
		Amount:       150000,
		GSTPercent:   18,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if bill.Code != "BILL/2025/0001" {
		t.Fatalf("expected BILL/2025/0001, got %s", bill.Code)
	}
	if bill.GSTAmount != 27000 {
		t.Fatalf("expected gst 27000, got %d", bill.GSTAmount)
	}
	if bill.TotalAmount != 177000 {
		t.Fatalf("expected total 177000, got %d", bill.TotalAmount)
	}
	if bill.Status != StatusUnpaid {
		t.Fatalf("expected unpaid, got %s", bill.Status)
	}

	second, err := svc.Issue(context.Background(), IssueParams{
		RequestCode: "REQ-002",
		CustomerID:  "cust-1",
		Amount:      5000,
		GSTPercent:  0,
	})
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if second.Code != "BILL/2025/0002" {
		t.Fatalf("expected BILL/2025/0002, got %s", second.Code)
	}
	if second.TotalAmount != 5000 {
		t.Fatalf("expected zero-gst total 5000, got %d", second.TotalAmount)
	}
}

func TestIssue_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, IssueParams{RequestCode: "REQ-001", CustomerID: "cust-1", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Issue(ctx, IssueParams{RequestCode: "REQ-001", CustomerID: "cust-1", Amount: 100, GSTPercent: 101}); !errors.Is(err, ErrInvalidGST) {
		t.Fatalf("expected ErrInvalidGST, got %v", err)
	}
	if _, err := svc.Issue(ctx, IssueParams{CustomerID: "cust-1", Amount: 100}); err == nil {
		t.Fatal("expected error for missing request code")
	}
}

func TestMarkPaid(t *testing.T) {
	svc, _ := newTestService(t)

	bill, err := svc.Issue(context.Background(), IssueParams{
		RequestCode: "REQ-001",
		CustomerID:  "cust-1",
		Amount:      100,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	paid, err := svc.MarkPaid(context.Background(), bill.Code)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != StatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected settled bill, got %+v", paid)
	}

	if _, err := svc.MarkPaid(context.Background(), "BILL/2025/9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListForCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Issue(ctx, IssueParams{RequestCode: "REQ-001", CustomerID: "cust-1", Amount: 100}); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	if _, err := svc.Issue(ctx, IssueParams{RequestCode: "REQ-002", CustomerID: "cust-2", Amount: 100}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	bills, err := svc.ListForCustomer(ctx, "cust-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bills) != 3 {
		t.Fatalf("expected three bills for cust-1, got %d", len(bills))
	}
}

type fakeRepository struct {
	byCode map[string]Bill
	order  []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byCode: make(map[string]Bill)}
}

func (f *fakeRepository) Create(_ context.Context, bill Bill) (Bill, error) {
	if _, ok := f.byCode[bill.Code]; ok {
		return Bill{}, ErrDuplicateCode
	}
	bill.IssuedAt = time.Now()
	f.byCode[bill.Code] = bill
	f.order = append(f.order, bill.Code)
	return bill, nil
}

func (f *fakeRepository) GetByCode(_ context.Context, code string) (Bill, error) {
	bill, ok := f.byCode[code]
	if !ok {
		return Bill{}, ErrNotFound
	}
	return bill, nil
}

func (f *fakeRepository) ListByCustomer(_ context.Context, customerID string, limit int) ([]Bill, error) {
	var bills []Bill
	for i := len(f.order) - 1; i >= 0 && len(bills) < limit; i-- {
		bill := f.byCode[f.order[i]]
		if bill.CustomerID == customerID {
			bills = append(bills, bill)
		}
	}
	return bills, nil
}

func (f *fakeRepository) MarkPaid(_ context.Context, code string) (Bill, error) {
	bill, ok := f.byCode[code]
	if !ok {
		return Bill{}, ErrNotFound
	}
	now := time.Now()
	bill.Status = StatusPaid
	bill.PaidAt = &now
	f.byCode[code] = bill
	return bill, nil
}
