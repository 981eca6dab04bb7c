package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/repository"
)

type ExcelGenerator interface {
	GenerateStatistics(report model.StatisticsReport) ([]byte, error)
}

type PDFGenerator interface {
	GenerateReceipt(receipt model.HandoverReceipt) ([]byte, error)
}

type ReportService struct {
	reports *repository.ReportRepository
	pickups *repository.PickupRepository
	lots    *repository.LotRepository
	excel   ExcelGenerator
	pdf     PDFGenerator
	clock   clock.Clock
}

// Scope selects the pickups a statistics query covers: those visible to Principal,
// created in [From, To) when set.
type Scope struct {
	Principal model.Principal
	From      *time.Time
	To        *time.Time
}

type FileResult struct {
	FileName string
	Content  []byte
}

func NewReportService(
	reports *repository.ReportRepository,
	pickups *repository.PickupRepository,
	lots *repository.LotRepository,
	excel ExcelGenerator,
	pdf PDFGenerator,
	clk clock.Clock,
) *ReportService {
	return &ReportService{
		reports: reports,
		pickups: pickups,
		lots:    lots,
		excel:   excel,
		pdf:     pdf,
		clock:   clk,
	}
}

func (s *ReportService) Statistics(ctx context.Context, scope Scope) (*model.PickupStatistics, error) {
	filter, err := scopeFilter(scope)
	if err != nil {
		return nil, err
	}

	counts, err := s.reports.CountsByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	completed, err := s.reports.ListCompletedQuantities(ctx, filter)
	if err != nil {
		return nil, err
	}
	return buildStatistics(counts, completed), nil
}

// ExportStatistics renders the statistics of scope and the pickups behind them as a workbook.
func (s *ReportService) ExportStatistics(ctx context.Context, scope Scope) (*FileResult, error) {
	filter, err := scopeFilter(scope)
	if err != nil {
		return nil, err
	}
	stats, err := s.Statistics(ctx, scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.ListRows(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := model.StatisticsReport{
		ScopeLabel:  scopeLabel(scope.Principal),
		PeriodStart: scope.From,
		PeriodEnd:   scope.To,
		GeneratedAt: s.clock.Now(),
		Statistics:  *stats,
		Pickups:     rows,
	}
	content, err := s.excel.GenerateStatistics(report)
	if err != nil {
		return nil, err
	}
	return &FileResult{FileName: statisticsFileName(report), Content: content}, nil
}

// HandoverReceipt renders the receipt of a completed pickup.
func (s *ReportService) HandoverReceipt(ctx context.Context, principal model.Principal, pickupID uuid.UUID) (*FileResult, error) {
	pickup, err := s.pickups.Get(ctx, pickupID)
	if err != nil {
		return nil, notFound(err, "pickup")
	}
	if !canView(principal, pickup) {
		return nil, ErrForbidden
	}
	if pickup.Status != lifecycle.StatusCompleted {
		return nil, fmt.Errorf("%w: receipt is only issued for completed pickups, this one is %s", ErrInvalidStateTransition, pickup.Status)
	}

	lot, err := s.lots.Get(ctx, pickup.FoodLotID)
	if err != nil {
		return nil, notFound(err, "food lot")
	}
	establishment, err := s.reports.GetEstablishment(ctx, pickup.EstablishmentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		establishment = &model.Establishment{ID: pickup.EstablishmentID}
	}

	content, err := s.pdf.GenerateReceipt(model.HandoverReceipt{
		Pickup:        *pickup,
		Lot:           *lot,
		Establishment: *establishment,
		IssuedAt:      s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("pickup-receipt-%s.pdf", pickup.ID.String()[:8]),
		Content:  content,
	}, nil
}

func scopeFilter(scope Scope) (repository.PickupFilter, error) {
	filter, err := principalFilter(scope.Principal)
	if err != nil {
		return filter, err
	}
	if scope.From != nil && scope.To != nil && !scope.From.Before(*scope.To) {
		return filter, fmt.Errorf("%w: from must be before to", ErrInvalidInput)
	}
	filter.CreatedFrom = scope.From
	filter.CreatedTo = scope.To
	return filter, nil
}

func buildStatistics(counts []model.StatusCount, completed []repository.CompletedQuantities) *model.PickupStatistics {
	stats := &model.PickupStatistics{
		ByStatus:           make(map[lifecycle.Status]int64, len(lifecycle.AllStatuses)),
		RequestedCompleted: decimal.Zero,
		DeliveredCompleted: decimal.Zero,
	}
	for _, status := range lifecycle.AllStatuses {
		stats.ByStatus[status] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] += c.Count
		stats.TotalPickups += c.Count
	}
	stats.TotalCompleted = stats.ByStatus[lifecycle.StatusCompleted]
	stats.TotalCancelled = stats.ByStatus[lifecycle.StatusCancelled]
	stats.TotalRejected = stats.ByStatus[lifecycle.StatusRejected]

	if stats.TotalPickups > 0 {
		total := float64(stats.TotalPickups)
		stats.CompletionRate = float64(stats.TotalCompleted) / total
		stats.CancellationRate = float64(stats.TotalCancelled) / total
		stats.RejectionRate = float64(stats.TotalRejected) / total
	}

	ratioSum := decimal.Zero
	ratioCount := 0
	for _, c := range completed {
		stats.RequestedCompleted = stats.RequestedCompleted.Add(c.Requested)
		stats.DeliveredCompleted = stats.DeliveredCompleted.Add(c.Delivered)
		if c.Requested.IsPositive() {
			ratioSum = ratioSum.Add(c.Delivered.Div(c.Requested))
			ratioCount++
		}
	}
	if ratioCount > 0 {
		stats.AverageDeliveryRatio = ratioSum.Div(decimal.NewFromInt(int64(ratioCount))).Round(4).InexactFloat64()
	}
	return stats
}

func scopeLabel(principal model.Principal) string {
	switch {
	case principal.IsAdmin():
		return "all pickups"
	case principal.IsEstablishment():
		return "establishment " + principal.OrgID.String()
	default:
		return "beneficiary " + principal.UserID.String()
	}
}

func statisticsFileName(report model.StatisticsReport) string {
	parts := []string{"pickup-statistics", sanitizeFileName(report.ScopeLabel)}
	if report.PeriodStart != nil {
		parts = append(parts, report.PeriodStart.Format("20060102"))
	}
	if report.PeriodEnd != nil {
		parts = append(parts, report.PeriodEnd.Format("20060102"))
	}
	return strings.Join(parts, "-") + ".xlsx"
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
