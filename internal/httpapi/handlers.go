package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/xbyte-labs/byte-gateway/internal/apperr"
	"github.com/xbyte-labs/byte-gateway/internal/gateway"
	"github.com/xbyte-labs/byte-gateway/internal/registry"
)

// maxDebugContentBytes bounds the multipart form read for POST /debug/content.
const maxDebugContentBytes = 32 << 20

type handlers struct {
	gw *gateway.Gateway
}

func writeEnvelope(w http.ResponseWriter, status int, env apperr.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeEnvelope(w, apperr.AdminStatus(kind), apperr.Fail(err.Error()))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, apperr.Success(Version))
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, apperr.Success("OK"))
}

type createClientRequest struct {
	Name   string `json:"name"`
	Wallet string `json:"wallet"`
}

func (h *handlers) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}
	if !common.IsHexAddress(req.Wallet) {
		writeError(w, apperr.Newf(apperr.ConfigError, "invalid wallet address %q", req.Wallet))
		return
	}
	c := h.gw.RegisterClient(req.Name, common.HexToAddress(req.Wallet))
	writeEnvelope(w, http.StatusOK, apperr.Success(c))
}

func (h *handlers) getClient(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if !common.IsHexAddress(wallet) {
		writeError(w, apperr.Newf(apperr.ConfigError, "invalid wallet address %q", wallet))
		return
	}
	c, ok := h.gw.GetClient(common.HexToAddress(wallet))
	if !ok {
		writeError(w, apperr.Newf(apperr.NotFound, "no client registered for wallet %s", wallet))
		return
	}
	writeEnvelope(w, http.StatusOK, apperr.Success(c))
}

type setPriceRequest struct {
	Key struct {
		Bucket string `json:"bucket"`
		Object string `json:"object"`
	} `json:"key"`
	Price uint64 `json:"price"`
}

func (h *handlers) setPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}
	h.gw.SetPrice(req.Key.Bucket, req.Key.Object, req.Price)
	writeEnvelope(w, http.StatusOK, apperr.Success("ok"))
}

func (h *handlers) getPrice(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	object := chi.URLParam(r, "object")
	price, ok := h.gw.GetPrice(bucket, object)
	if !ok {
		writeError(w, apperr.Newf(apperr.NotFound, "no price set for %s/%s", bucket, object))
		return
	}
	writeEnvelope(w, http.StatusOK, apperr.Success(price))
}

type registerBucketRequest struct {
	Client  string                      `json:"client"`
	Storage registry.StorageCredential `json:"storage"`
}

func (h *handlers) registerBucket(w http.ResponseWriter, r *http.Request) {
	var req registerBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}
	if !common.IsHexAddress(req.Client) {
		writeError(w, apperr.Newf(apperr.ConfigError, "invalid wallet address %q", req.Client))
		return
	}
	buckets, err := h.gw.RegisterBucket(r.Context(), common.HexToAddress(req.Client), req.Storage)
	if err != nil {
		writeError(w, apperr.New(apperr.UpstreamFailed, err))
		return
	}
	writeEnvelope(w, http.StatusOK, apperr.Success(buckets))
}

func (h *handlers) listAllBuckets(w http.ResponseWriter, r *http.Request) {
	buckets := h.gw.ListAllBuckets(r.Context())
	writeEnvelope(w, http.StatusOK, apperr.Success(buckets))
}

func (h *handlers) listBucketObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objects, err := h.gw.ListBucketObjects(r.Context(), bucket)
	if err != nil {
		writeError(w, apperr.New(apperr.UpstreamFailed, err))
		return
	}
	writeEnvelope(w, http.StatusOK, apperr.Success(objects))
}

// debugSetContent stores an uploaded file's bytes in the registry's
// in-memory content store and returns its key, standing in for a real S3
// bucket during local development. Only mounted when debug routes are
// enabled.
func (h *handlers) debugSetContent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDebugContentBytes); err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}
	file, _, err := r.FormFile("content")
	if err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}
	defer file.Close()

	buffer, err := io.ReadAll(io.LimitReader(file, maxDebugContentBytes))
	if err != nil {
		writeError(w, apperr.New(apperr.ConfigError, err))
		return
	}

	key := h.gw.SetDebugContent(buffer)
	writeEnvelope(w, http.StatusOK, apperr.Success(key))
}

func (h *handlers) servePaidObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	object := chi.URLParam(r, "object")

	offset, err := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64)
	if err != nil {
		writeError(w, apperr.Newf(apperr.ConfigError, "invalid offset: %v", err))
		return
	}
	length, err := strconv.ParseUint(r.URL.Query().Get("length"), 10, 64)
	if err != nil || length == 0 {
		writeError(w, apperr.Newf(apperr.ConfigError, "invalid length"))
		return
	}

	h.gw.ServeObject(w, r, bucket, object, offset, length)
}
