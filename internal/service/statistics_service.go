package service

import (
	"context"
	"time"

	"backend/internal/model"
	"backend/internal/workflow"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates the application pipeline bounded by creation time:
// distribution per stage and status, commission totals, top partners.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	var response model.StatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate

	inRange := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate)

	if err := inRange.Session(&gorm.Session{}).Count(&response.TotalApplications).Error; err != nil {
		return response, err
	}

	terminal := []string{
		workflow.StatusRejectedStage1,
		workflow.StatusUniversityRejected,
		workflow.StatusVisaRejected,
		workflow.StatusCommissionPaid,
		workflow.StatusCancelled,
	}
	if err := inRange.Session(&gorm.Session{}).
		Where("current_status NOT IN ? AND current_status <> ?", terminal, workflow.StatusOnHold).
		Count(&response.ActiveApplications).Error; err != nil {
		return response, err
	}
	if err := inRange.Session(&gorm.Session{}).
		Where("current_status = ?", workflow.StatusOnHold).
		Count(&response.OnHoldApplications).Error; err != nil {
		return response, err
	}

	// Stage distribution
	var stageCounts []model.StageCount
	err := inRange.Session(&gorm.Session{}).
		Select("current_stage as stage, COUNT(*) as count").
		Group("current_stage").
		Order("current_stage ASC").
		Scan(&stageCounts).Error
	if err != nil {
		return response, err
	}
	stageLabels := map[int]string{
		workflow.StageApplicationReview:    "Application Review",
		workflow.StageUniversityProcessing: "University Processing",
		workflow.StageVisaProcessing:       "Visa Processing",
		workflow.StageArrival:              "Arrival & Enrollment",
		workflow.StageCommission:           "Commission Settlement",
	}
	for i := range stageCounts {
		stageCounts[i].Label = stageLabels[stageCounts[i].Stage]
	}
	response.ByStage = stageCounts

	// Status distribution
	err = inRange.Session(&gorm.Session{}).
		Select("current_status as status, COUNT(*) as count").
		Group("current_status").
		Order("count DESC").
		Scan(&response.ByStatus).Error
	if err != nil {
		return response, err
	}

	// Commission totals
	var paid struct{ Value decimal.Decimal }
	err = inRange.Session(&gorm.Session{}).
		Select("COALESCE(SUM(commission_amount), 0) as value").
		Where("current_status = ?", workflow.StatusCommissionPaid).
		Scan(&paid).Error
	if err != nil {
		return response, err
	}
	response.CommissionPaid = paid.Value

	var outstanding struct{ Value decimal.Decimal }
	err = inRange.Session(&gorm.Session{}).
		Select("COALESCE(SUM(commission_amount), 0) as value").
		Where("current_status IN ?", []string{workflow.StatusCommissionPending, workflow.StatusCommissionInvoiced}).
		Scan(&outstanding).Error
	if err != nil {
		return response, err
	}
	response.CommissionOutstanding = outstanding.Value

	// Top partners by application volume
	var topPartners []model.PartnerRanking
	err = s.db.WithContext(ctx).Table("applications").
		Select("users.id as partner_id, users.username as partner_name, COUNT(applications.id) as applications, COALESCE(SUM(applications.commission_amount), 0) as commission").
		Joins("JOIN users ON users.id = applications.partner_id").
		Where("applications.created_at >= ? AND applications.created_at <= ? AND applications.deleted_at IS NULL", startDate, endDate).
		Group("users.id, users.username").
		Order("applications DESC").
		Limit(5).
		Scan(&topPartners).Error
	if err != nil {
		return response, err
	}
	response.TopPartners = topPartners

	return response, nil
}
