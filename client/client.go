package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gasparian/ann-clustering-go/app"
	"github.com/gasparian/ann-clustering-go/common"
)

// Config holds necessary constants for initiating the ANNClient
type Config struct {
	ServerAddress string
	Timeout       time.Duration
}

type methods struct {
	HealthCheck string
	Stats       string
	KNN         string
	Range       string
}

// ANNClient holds data needed to perform http requests to the query service
type ANNClient struct {
	ServerAddress string
	Client        http.Client
	Methods       methods
}

// Result holds neighbors returned by the server
type Result struct {
	Neighbors []common.NeighborsRecord `json:"neighbors"`
	Message   string                   `json:"message"`
	ElapsedMs float64                  `json:"elapsedMs"`
}

// StatusError is returned for non 2xx responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("response status %d: %s", e.Code, e.Message)
}

// New creates new instance of ANNClient
func New(config Config) *ANNClient {
	addr := strings.TrimRight(config.ServerAddress, "/")
	return &ANNClient{
		ServerAddress: addr,
		Client:        http.Client{Timeout: config.Timeout},
		Methods: methods{
			HealthCheck: addr + "/",
			Stats:       addr + "/stats",
			KNN:         addr + "/knn",
			Range:       addr + "/range",
		},
	}
}

// MakeRequest performs the http request with specified body
func (client *ANNClient) MakeRequest(ctx context.Context, method, url string, body io.Reader, target interface{}) error {
	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-type", "application/json")

	resp, err := client.Client.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure common.ResponseData
		json.NewDecoder(resp.Body).Decode(&failure)
		return &StatusError{Code: resp.StatusCode, Message: failure.Message}
	}

	if target != nil {
		return json.NewDecoder(resp.Body).Decode(target)
	}
	return nil
}

// HealthCheck checks that the server is up
func (client *ANNClient) HealthCheck(ctx context.Context) error {
	return client.MakeRequest(ctx, http.MethodGet, client.Methods.HealthCheck, nil, nil)
}

// Stats returns size and dimension of the served dataset
func (client *ANNClient) Stats(ctx context.Context) (*app.Stats, error) {
	target := &app.Stats{}
	err := client.MakeRequest(ctx, http.MethodGet, client.Methods.Stats, nil, target)
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (client *ANNClient) post(ctx context.Context, url string, req common.RequestData) (*Result, error) {
	jsonRequest, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	target := &Result{}
	err = client.MakeRequest(ctx, http.MethodPost, url, bytes.NewBuffer(jsonRequest), target)
	if err != nil {
		return nil, err
	}
	return target, nil
}

// KNN gets n nearest neighbors of vec found by the method
func (client *ANNClient) KNN(ctx context.Context, method string, vec []int, n int) (*Result, error) {
	return client.post(ctx, client.Methods.KNN, common.RequestData{
		Method: method,
		Vec:    vec,
		N:      n,
	})
}

// RangeSearch gets all neighbors of vec strictly inside the radius found by the method
func (client *ANNClient) RangeSearch(ctx context.Context, method string, vec []int, radius float64) (*Result, error) {
	return client.post(ctx, client.Methods.Range, common.RequestData{
		Method: method,
		Vec:    vec,
		Radius: radius,
	})
}
