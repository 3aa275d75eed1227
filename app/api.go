package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib"
	"github.com/fiffu/stockwatch/lib/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultHistoryCount = 5

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(log, svc, cfg.GetCreds())}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("API server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("API server started", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(log *zap.Logger, svc *lib.Service, creds map[string]string) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if len(creds) > 0 {
			r.Use(middleware.BasicAuth("stockwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/users/{user_id}/subscriptions", func(r chi.Router) {
			r.Post("/", ctrl.subscribe)
			r.Get("/", ctrl.listSubscriptions)
			r.Delete("/", ctrl.unsubscribe)
		})
		r.Get("/history", ctrl.priceHistories)
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

// reject maps user errors to 400 and hides everything else behind a 500.
func (ctrl *controller) reject(w http.ResponseWriter, r *http.Request, err error) {
	var userErr *lib.UserError
	if errors.As(err, &userErr) {
		http.Error(w, userErr.Error(), http.StatusBadRequest)
		return
	}
	ctrl.log.Sugar().Errorw("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (ctrl *controller) resolve(w http.ResponseWriter, r *http.Request, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	opts, err := parseTrackingOptions(r)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}

	sub, err := ctrl.svc.Subscribe(ctx, userID, r.FormValue("url"), opts)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}
	view := SubscriptionView{}.From(lib.SubscriptionInfo{Subscription: *sub})
	ctrl.resolve(w, r, http.StatusCreated, SubscribedView{SubscriptionView: view, Message: ctrl.svc.SubscribedMessage(sub)})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	historyN, err := parseCount(r.URL.Query().Get("history"), 0)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}

	infos, err := ctrl.svc.Subscriptions(ctx, userID, historyN)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}

	views := FromMany[lib.SubscriptionInfo, SubscriptionView](infos)
	if historyN > 0 {
		for i, info := range infos {
			views[i].History = ctrl.svc.HistoryLines(info.History)
		}
	}
	ctrl.resolve(w, r, http.StatusOK, views)
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		n, err := ctrl.svc.UnsubscribeAll(ctx, userID)
		if err != nil {
			ctrl.reject(w, r, err)
			return
		}
		ctrl.resolve(w, r, http.StatusOK, map[string]any{
			"removed": n,
			"message": "Successfully unsubscribed from all items tracked",
		})
		return
	}

	if err := ctrl.svc.Unsubscribe(ctx, userID, rawURL); err != nil {
		ctrl.reject(w, r, err)
		return
	}
	ctrl.resolve(w, r, http.StatusOK, map[string]any{
		"removed": 1,
		"message": "Successfully unsubscribed from " + rawURL,
	})
}

func (ctrl *controller) priceHistories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	urls := query["url"]
	if len(urls) == 0 {
		ctrl.reject(w, r, &lib.UserError{Message: "There are no items to retrieve price histories for"})
		return
	}
	n, err := parseCount(query.Get("n"), defaultHistoryCount)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}

	histories, invalid, err := ctrl.svc.PriceHistories(ctx, urls, n)
	if err != nil {
		ctrl.reject(w, r, err)
		return
	}

	view := HistoryResponseView{Items: []ItemHistoryView{}, Invalid: []string{}}
	for _, raw := range urls {
		if slices.Contains(invalid, raw) {
			view.Invalid = append(view.Invalid, raw+" was not a valid url")
		}
	}
	for url, rows := range histories {
		view.Items = append(view.Items, ItemHistoryView{}.From(url, rows, ctrl.svc.HistoryLines(rows)))
	}
	sortItemHistories(view.Items)
	ctrl.resolve(w, r, http.StatusOK, view)
}

func parseTrackingOptions(r *http.Request) (models.TrackingOptions, error) {
	opts := models.DefaultTrackingOptions()

	if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
		limit, err := strconv.ParseFloat(raw, 64)
		if err != nil || limit < 0 {
			return opts, &lib.UserError{Message: fmt.Sprintf("threshold %q is not a valid price", raw), Err: err}
		}
		opts.Threshold = models.NewThreshold(limit)
	}

	if raw := strings.TrimSpace(r.FormValue("official_only")); raw != "" {
		official, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, &lib.UserError{Message: fmt.Sprintf("official_only %q is not a boolean", raw), Err: err}
		}
		opts.OfficialOnly = official
	}

	if err := r.ParseForm(); err == nil {
		for _, field := range r.Form["sizes"] {
			for _, size := range strings.Split(field, ",") {
				if size = strings.TrimSpace(size); size != "" {
					opts.Sizes = append(opts.Sizes, size)
				}
			}
		}
	}
	return opts, nil
}

func parseCount(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &lib.UserError{Message: fmt.Sprintf("%q is not a valid count", raw), Err: err}
	}
	return n, nil
}
