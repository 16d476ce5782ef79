package usage

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/models"
	"github.com/pdplens/pdplens/internal/pkg/pagination"
	"github.com/pdplens/pdplens/internal/pkg/response"
	"gorm.io/gorm"
)

const defaultRetentionDays = 90

// Handler exposes the usage audit trail to admin users.
type Handler struct {
	db            *gorm.DB
	retentionDays int
}

func NewHandler(db *gorm.DB, retentionDays int) *Handler {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &Handler{db: db, retentionDays: retentionDays}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/usage", authMW)
	g.GET("", h.list)
	g.GET("/today", h.today)
	g.GET("/total", h.total)
	g.GET("/aggregate", h.aggregate)
	g.DELETE("", h.cleanOld)
}

// GET /usage
func (h *Handler) list(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q := pagination.FromContext(c)

	tx := applyFilter(h.db.Model(&models.UsageLogModel{}), uq).Order("created_at DESC")

	var rows []models.UsageLogModel
	page, err := pagination.Paginate(tx, q, &rows)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, rows, page)
}

// GET /usage/today
func (h *Handler) today(c *gin.Context) {
	from := beginningOfDay(time.Now())
	to := time.Now()

	var discoveries int64
	if err := h.rangeQuery(from, to).Count(&discoveries).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	var users int64
	if err := h.rangeQuery(from, to).Distinct("user_id").Count(&users).Error; err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, totalStat{Discoveries: discoveries, Users: users})
}

// GET /usage/total
func (h *Handler) total(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var discoveries int64
	if err := applyFilter(h.db.Model(&models.UsageLogModel{}), uq).Count(&discoveries).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	var users int64
	if err := applyFilter(h.db.Model(&models.UsageLogModel{}), uq).Distinct("user_id").Count(&users).Error; err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, totalStat{Discoveries: discoveries, Users: users})
}

// GET /usage/aggregate
//
// Thirty days of daily volume plus the leading categories and competitor
// brands over the same window.
func (h *Handler) aggregate(c *gin.Context) {
	now := time.Now()
	todayStart := beginningOfDay(now)
	windowStart := todayStart.AddDate(0, 0, -29)

	counts, err := h.dailyCounts(windowStart, now)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	days := make([]gin.H, 0, 30)
	for i := 29; i >= 0; i-- {
		day := todayStart.AddDate(0, 0, -i)
		key := day.Format("2006-01-02")
		days = append(days, gin.H{"date": key, "count": counts[key]})
	}

	categories, err := h.topValues("product_category", windowStart, now)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	brands, err := h.topValues("competitor_brand", windowStart, now)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, gin.H{
		"days":       days,
		"categories": categories,
		"brands":     brands,
	})
}

// DELETE /usage
//
// With an explicit range the range is deleted; without one, entries older
// than the retention window go. Rows are removed for real, an audit trail
// kept in soft-deleted limbo serves nobody.
func (h *Handler) cleanOld(c *gin.Context) {
	var uq usageQuery
	if err := c.ShouldBindQuery(&uq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tx := h.db.Model(&models.UsageLogModel{})
	if uq.From != nil || uq.To != nil || uq.StartAt != nil || uq.EndAt != nil {
		tx = applyFilter(tx, uq)
	} else {
		cutoff := time.Now().AddDate(0, 0, -h.retentionDays)
		tx = tx.Where("created_at < ?", cutoff)
	}
	result := tx.Unscoped().Delete(&models.UsageLogModel{})
	if result.Error != nil {
		response.InternalError(c, result.Error)
		return
	}
	response.OK(c, gin.H{"deleted": result.RowsAffected})
}

// DeleteOlderThan removes entries created before the cutoff. Used by the
// retention cron.
func DeleteOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.UsageLogModel{})
	return result.RowsAffected, result.Error
}

func (h *Handler) rangeQuery(from, to time.Time) *gorm.DB {
	return h.db.Model(&models.UsageLogModel{}).
		Where("created_at >= ? AND created_at <= ?", from, to)
}

func (h *Handler) dailyCounts(from, to time.Time) (map[string]int64, error) {
	type liteRow struct {
		CreatedAt time.Time `gorm:"column:created_at"`
	}
	var rows []liteRow
	if err := h.rangeQuery(from, to).Select("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, 30)
	for _, row := range rows {
		key := row.CreatedAt.In(time.Local).Format("2006-01-02")
		counts[key]++
	}
	return counts, nil
}

func (h *Handler) topValues(column string, from, to time.Time) ([]labelCount, error) {
	var rows []labelCount
	err := h.rangeQuery(from, to).
		Select(fmt.Sprintf("%s AS label, COUNT(*) AS count", column)).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", column, column)).
		Group(column).
		Order("count DESC").
		Limit(20).
		Scan(&rows).Error
	return rows, err
}

// applyFilter adds the optional WHERE clauses of uq to tx.
func applyFilter(tx *gorm.DB, uq usageQuery) *gorm.DB {
	start := uq.StartAt
	if start == nil {
		start = uq.From
	}
	end := uq.EndAt
	if end == nil {
		end = uq.To
	}

	if start != nil {
		tx = tx.Where("created_at >= ?", *start)
	}
	if end != nil {
		tx = tx.Where("created_at <= ?", *end)
	}
	if v := strings.TrimSpace(uq.UserID); v != "" {
		tx = tx.Where("user_id = ?", v)
	}
	if v := strings.TrimSpace(uq.Category); v != "" {
		tx = tx.Where("product_category = ?", v)
	}
	if v := strings.TrimSpace(uq.Brand); v != "" {
		tx = tx.Where("competitor_brand = ?", v)
	}
	return tx
}

func beginningOfDay(t time.Time) time.Time {
	local := t.In(time.Local)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
