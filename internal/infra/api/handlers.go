package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/worker"
	"matrimony-subscription/internal/usecase"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func items[T any](in []T) listResponse[T] {
	if in == nil {
		in = []T{}
	}
	return listResponse[T]{Items: in}
}

// caller is set by Auth on every /api/v1 route.
func caller(r *http.Request) *model.Principal {
	return PrincipalFrom(r.Context())
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, items(s.deps.Catalog.Catalog().List()))
}

// checkContact is advisory; the decision itself is always a 200.
func (s *Server) checkContact(w http.ResponseWriter, r *http.Request) {
	d := s.deps.Quota.CheckCanContact(r.Context(), caller(r).UserID, chi.URLParam(r, "profileID"))
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) recordContact(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Quota.RecordContact(r.Context(), caller(r).UserID, chi.URLParam(r, "profileID"))
	status := http.StatusOK
	if !res.Success {
		status = statusFor(res.Reason)
	}
	writeJSON(w, status, res)
}

func (s *Server) mySubscription(w http.ResponseWriter, r *http.Request) {
	s.writeSubscription(w, r, caller(r).UserID)
}

func (s *Server) writeSubscription(w http.ResponseWriter, r *http.Request, userID string) {
	sub, err := s.deps.Subs.GetSubscription(r.Context(), userID)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) myUsage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Quota.Usage(r.Context(), caller(r).UserID)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	reason := usecase.ReasonFor(err)
	if errors.Is(err, domain.ErrNotFound) || reason == usecase.ReasonNoActivePackage {
		writeError(w, http.StatusNotFound, string(usecase.ReasonNoActivePackage))
		return
	}
	if reason.Retryable() {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("lookup failed")
	}
	writeError(w, statusFor(reason), string(reason))
}

func (s *Server) myPurchases(w http.ResponseWriter, r *http.Request) {
	f, err := purchaseFilter(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	f.UserID = caller(r).UserID
	s.writePurchases(w, r, f)
}

func (s *Server) writePurchases(w http.ResponseWriter, r *http.Request, f model.PurchaseFilter) {
	list, err := s.deps.Subs.PurchaseHistory(r.Context(), f)
	if err != nil {
		reason := usecase.ReasonFor(err)
		logging.With(r.Context(), s.log).Error().Err(err).Msg("purchase history failed")
		writeError(w, statusFor(reason), string(reason))
		return
	}
	writeJSON(w, http.StatusOK, items(list))
}

func purchaseFilter(r *http.Request) (model.PurchaseFilter, error) {
	q := r.URL.Query()
	f := model.PurchaseFilter{
		UserID:    strings.TrimSpace(q.Get("user_id")),
		PackageID: strings.TrimSpace(q.Get("package_id")),
		PaymentID: strings.TrimSpace(q.Get("payment_id")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &requestError{status: http.StatusBadRequest, msg: "invalid query", details: map[string]string{"limit": "must be a non-negative integer"}}
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, &requestError{status: http.StatusBadRequest, msg: "invalid query", details: map[string]string{"since": "must be RFC3339"}}
		}
		f.Since = t
	}
	return f, nil
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var in usecase.ConfirmPaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeRequestError(w, err)
		return
	}
	writeResult(w, s.deps.Payments.Confirm(r.Context(), caller(r).UserID, in))
}

// --- admin ---

type activateRequest struct {
	PackageID    string `json:"package_id" validate:"required"`
	CustomMonths int    `json:"custom_months" validate:"gte=0,lte=120"`
	PaymentID    string `json:"payment_id"`
	OrderID      string `json:"order_id"`
}

type extendRequest struct {
	Months int `json:"months" validate:"required,gte=1,lte=120"`
}

func (s *Server) adminActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	res := s.deps.Subs.Activate(r.Context(), chi.URLParam(r, "userID"), req.PackageID, usecase.ActivateOptions{
		CustomMonths: req.CustomMonths,
		Source:       model.PurchaseSourceAdmin,
		PaymentID:    req.PaymentID,
		OrderID:      req.OrderID,
	})
	writeResult(w, res)
}

func (s *Server) adminExtend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	writeResult(w, s.deps.Subs.Extend(r.Context(), chi.URLParam(r, "userID"), req.Months))
}

func (s *Server) adminExpire(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.deps.Subs.Expire(r.Context(), chi.URLParam(r, "userID")))
}

func (s *Server) adminCancel(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.deps.Subs.Cancel(r.Context(), chi.URLParam(r, "userID")))
}

func (s *Server) adminSubscription(w http.ResponseWriter, r *http.Request) {
	s.writeSubscription(w, r, chi.URLParam(r, "userID"))
}

func (s *Server) adminPurchases(w http.ResponseWriter, r *http.Request) {
	f, err := purchaseFilter(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	s.writePurchases(w, r, f)
}

// adminCatalogSync hands the mirror sync to the worker pool; the outcome is only logged.
func (s *Server) adminCatalogSync(w http.ResponseWriter, r *http.Request) {
	var task worker.Task = func(ctx context.Context) error {
		_, err := s.deps.Catalog.Sync(ctx)
		return err
	}
	if err := s.deps.Jobs.Submit(r.Context(), "catalog_sync", task); err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("catalog sync not scheduled")
		writeError(w, http.StatusServiceUnavailable, "sync not scheduled, try again later")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) adminCatalogDrift(w http.ResponseWriter, r *http.Request) {
	drift, err := s.deps.Catalog.Drift(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("catalog drift failed")
		writeError(w, http.StatusServiceUnavailable, string(usecase.ReasonStoreUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, items(drift))
}
