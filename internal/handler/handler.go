package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Soulboard/soulboard-web-sub001/internal/models"
	"github.com/Soulboard/soulboard-web-sub001/internal/repository"
	"github.com/Soulboard/soulboard-web-sub001/internal/scheduler"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func pagination(r *http.Request) (offset, limit, page int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return (page - 1) * limit, limit, page
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type ProviderHandler struct {
	identityRepo *repository.IdentityRepository
}

func NewProviderHandler(identityRepo *repository.IdentityRepository) *ProviderHandler {
	return &ProviderHandler{identityRepo: identityRepo}
}

// GetEarnings serves /api/providers/{address}/earnings.
func (h *ProviderHandler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 || pathParts[3] != "earnings" {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/providers/{address}/earnings")
		return
	}

	address := pathParts[2]
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	ctx := r.Context()
	account, err := h.identityRepo.FindByAddress(ctx, address, models.RoleProvider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up provider: "+err.Error())
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":        account.WalletAddress,
		"holder_address": account.HolderAddress,
		"total_earnings": account.TotalEarnings,
		"updated_at":     account.UpdatedAt.Format(time.RFC3339),
	})
}

type SettlementHandler struct {
	runRepo    *repository.SettlementRepository
	payoutRepo *repository.PayoutRepository
	scheduler  *scheduler.SettlementScheduler
}

func NewSettlementHandler(runRepo *repository.SettlementRepository, payoutRepo *repository.PayoutRepository, sched *scheduler.SettlementScheduler) *SettlementHandler {
	return &SettlementHandler{
		runRepo:    runRepo,
		payoutRepo: payoutRepo,
		scheduler:  sched,
	}
}

// ListRuns serves /api/settlements?campaign_id=&page=&page_size=.
func (h *SettlementHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	campaignID, _ := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	offset, limit, page := pagination(r)

	ctx := r.Context()
	runs, err := h.runRepo.ListByCampaign(ctx, campaignID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list settlement runs: "+err.Error())
		return
	}

	total, err := h.runRepo.CountByCampaign(ctx, campaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count settlement runs: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    runs,
		"total":    total,
		"page":     page,
		"pageSize": limit,
	})
}

// ListPayouts serves /api/payouts?campaign_id=&device_id=&page=&page_size=.
func (h *SettlementHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	campaignID, _ := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	deviceID, _ := strconv.ParseInt(r.URL.Query().Get("device_id"), 10, 64)
	offset, limit, page := pagination(r)

	ctx := r.Context()
	payouts, err := h.payoutRepo.List(ctx, campaignID, deviceID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list payouts: "+err.Error())
		return
	}

	total, err := h.payoutRepo.Count(ctx, campaignID, deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count payouts: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    payouts,
		"total":    total,
		"page":     page,
		"pageSize": limit,
	})
}

// TriggerRun serves POST /api/settlement/run. An optional slot query
// parameter (UNIX seconds) selects the hour to settle; default is the
// previous full hour.
func (h *SettlementHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var slot time.Time
	if raw := r.URL.Query().Get("slot"); raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "slot must be UNIX seconds")
			return
		}
		slot = time.Unix(unix, 0)
	} else {
		now := time.Now()
		slot = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()).Add(-time.Hour)
	}

	summary, err := h.scheduler.TriggerManualRun(r.Context(), slot)
	if err != nil {
		writeError(w, http.StatusConflict, "settlement run failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
