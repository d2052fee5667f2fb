package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/middleware"
	"github.com/hitoshi/starterapi/internal/model"
)

// maxInputBytes はミューテーションのリクエストボディの上限。
const maxInputBytes = 1 << 20

// codeOK は成功時にメトリクスへ記録するコード。
const codeOK = "OK"

type procedure struct {
	Procedure
	kind Kind
}

// Server はプロシージャの登録表とHTTPへの公開を管理する。
type Server struct {
	procedures map[string]procedure
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	devMode    bool
}

// NewServer はServerを生成する。
// devModeがtrueの場合、内部エラーのレスポンスに元のエラー文字列をdetailとして含める。
func NewServer(logger *slog.Logger, collector metrics.MetricsCollector, devMode bool) *Server {
	return &Server{
		procedures: make(map[string]procedure),
		logger:     logger,
		collector:  collector,
		devMode:    devMode,
	}
}

// Query はクエリプロシージャを登録する。
func (s *Server) Query(name string, p Procedure) {
	s.register(name, Query, p)
}

// Mutation はミューテーションプロシージャを登録する。
func (s *Server) Mutation(name string, p Procedure) {
	s.register(name, Mutation, p)
}

func (s *Server) register(name string, kind Kind, p Procedure) {
	if _, exists := s.procedures[name]; exists {
		panic("rpc: duplicate procedure " + name)
	}
	if p.handler == nil {
		panic("rpc: procedure " + name + " has no handler")
	}
	s.procedures[name] = procedure{Procedure: p, kind: kind}
}

// Routes はプロシージャを公開するchi.Routerを返す。
//
//	GET  /{procedure}?input=<json>  クエリ
//	POST /{procedure}               ミューテーション（ボディがJSON入力）
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{procedure}", s.serve)
	r.Post("/{procedure}", s.serve)
	return r
}

// successBody は成功レスポンスのフォーマット。
type successBody struct {
	Result resultData `json:"result"`
}

type resultData struct {
	Data any `json:"data"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "procedure")

	proc, ok := s.procedures[name]
	if !ok {
		s.writeError(w, r, name, start, model.NewProcedureNotFoundError(name))
		return
	}

	wantMethod := http.MethodGet
	if proc.kind == Mutation {
		wantMethod = http.MethodPost
	}
	if r.Method != wantMethod {
		s.writeError(w, r, name, start, model.NewMethodNotAllowedError(name, r.Method))
		return
	}

	// 入力の大きさや形式に関わらず、セッションのない呼び出しはボディを読む前に拒否する
	if proc.Protected() {
		if _, err := callerFrom(r.Context()); err != nil {
			s.writeError(w, r, name, start, err)
			return
		}
	}

	input, err := readInput(w, r, proc.kind)
	if err != nil {
		s.writeError(w, r, name, start, err)
		return
	}

	out, err := proc.Call(r.Context(), input)
	if err != nil {
		s.writeError(w, r, name, start, err)
		return
	}

	s.collector.RecordProcedureCall(name, codeOK, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(successBody{Result: resultData{Data: out}})
}

// readInput はクエリではinputパラメータ、ミューテーションではボディから入力を読み取る。
func readInput(w http.ResponseWriter, r *http.Request, kind Kind) (json.RawMessage, error) {
	if kind == Query {
		return json.RawMessage(r.URL.Query().Get("input")), nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInputBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewBadRequestError("Request body too large")
		}
		return nil, model.NewBadRequestError("Failed to read request body")
	}
	return body, nil
}

// writeError はエラーを統一フォーマットで書き込む。
// APIError以外のエラーはログに記録し、INTERNAL_ERRORとして返す。
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, name string, start time.Time, err error) {
	var apiErr *model.APIError
	var detail string
	if !errors.As(err, &apiErr) {
		s.logger.ErrorContext(r.Context(), "procedure failed",
			slog.String("procedure", name),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		apiErr = model.NewInternalError("")
		detail = err.Error()
	}

	s.collector.RecordProcedureCall(name, apiErr.Code, time.Since(start))

	body := middleware.NewErrorResponseBody(apiErr)
	if s.devMode && detail != "" {
		body.Detail = detail
	}
	middleware.WriteErrorBody(w, statusFor(apiErr), body)
}

// statusFor はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeQuotaExceeded:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeBadRequest:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
