package clients

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/spacesedan/sentiscope/config"
	"github.com/spacesedan/sentiscope/internal/models"
)

// recordDocument is the indexed shape of one classified record.
type recordDocument struct {
	ReportID     string    `json:"report_id"`
	RecordID     string    `json:"record_id"`
	Handle       string    `json:"handle"`
	Language     string    `json:"language"`
	Position     int       `json:"position"`
	CleanedText  string    `json:"cleaned_text"`
	Subjectivity float64   `json:"subjectivity"`
	Polarity     float64   `json:"polarity"`
	Label        string    `json:"label"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// ReportIndex makes report records searchable in OpenSearch.
type ReportIndex struct {
	client *opensearch.Client
	index  string
}

// NewReportIndex signs requests with the default AWS credential chain when
// cfg.SigV4 is set and uses basic auth otherwise.
func NewReportIndex(ctx context.Context, cfg config.OpenSearchConfig, region string) (*ReportIndex, error) {
	osCfg := opensearch.Config{
		Addresses: []string{cfg.Endpoint},
	}

	if cfg.SigV4 {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("[OpenSearchClient] load AWS config: %w", err)
		}
		osCfg.Transport = NewSigV4Transport(awsCfg.Credentials, v4.NewSigner(), awsCfg.Region, "es")
	} else {
		osCfg.Username = cfg.Username
		osCfg.Password = cfg.Password
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("[OpenSearchClient] failed to initialize client: %w", err)
	}

	slog.Info("[OpenSearchClient] OpenSearch client initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("index", cfg.Index))
	return &ReportIndex{client: client, index: cfg.Index}, nil
}

func (ri *ReportIndex) Name() string {
	return "opensearch"
}

// Ping fails unless the cluster health endpoint answers 200.
func (ri *ReportIndex) Ping(ctx context.Context) error {
	res, err := ri.client.Do(ctx, opensearchapi.ClusterHealthReq{}, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() || res.StatusCode != http.StatusOK {
		return fmt.Errorf("[OpenSearchClient] cluster health: %s", res.Status())
	}
	return nil
}

// Export indexes every record of report in one bulk request. Document ids are
// "<report id>:<record id>" so re-exporting a report overwrites it.
func (ri *ReportIndex) Export(ctx context.Context, report models.Report) error {
	if len(report.Records) == 0 {
		return nil
	}

	body, err := bulkBody(ri.index, report)
	if err != nil {
		return err
	}

	res, err := ri.client.Do(ctx, opensearchapi.BulkReq{Body: bytes.NewReader(body)}, nil)
	if err != nil {
		slog.Error("[OpenSearchClient] Failed to index report", slog.String("error", err.Error()))
		return fmt.Errorf("[OpenSearchClient] bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		slog.Error("[OpenSearchClient] OpenSearch indexing error", slog.String("status", res.Status()))
		return fmt.Errorf("opensearch error: %s", res.Status())
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("[OpenSearchClient] decode bulk response: %w", err)
	}
	if bulk.Errors {
		var failed []string
		for _, item := range bulk.Items {
			for _, result := range item {
				if result.Error != nil {
					failed = append(failed, fmt.Sprintf("%s (%s)", result.ID, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("[OpenSearchClient] %d documents rejected: %s", len(failed), strings.Join(failed, ", "))
	}

	slog.Info("[OpenSearchClient] Indexed report",
		slog.String("index", ri.index),
		slog.String("report_id", report.ID),
		slog.Int("count", len(report.Records)))
	return nil
}

func bulkBody(index string, report models.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i, rec := range report.Records {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": report.ID + ":" + rec.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}

		doc := recordDocument{
			ReportID:     report.ID,
			RecordID:     rec.ID,
			Handle:       report.Handle,
			Language:     report.Language,
			Position:     i,
			CleanedText:  rec.CleanedText,
			Subjectivity: rec.Subjectivity,
			Polarity:     rec.Polarity,
			Label:        string(rec.Label),
			GeneratedAt:  report.GeneratedAt,
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("[OpenSearchClient] failed to marshal record %q: %w", rec.ID, err)
		}
	}
	return buf.Bytes(), nil
}

type sigV4Transport struct {
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	region      string
	service     string
	next        http.RoundTripper
}

func NewSigV4Transport(creds aws.CredentialsProvider, signer *v4.Signer, region string, service string) http.RoundTripper {
	return &sigV4Transport{
		credentials: creds,
		signer:      signer,
		region:      region,
		service:     service,
		next:        http.DefaultTransport,
	}
}

func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, err
	}

	signedReq := req.Clone(req.Context())
	signedReq.Header.Del("Authorization")

	var payload []byte
	if req.Body != nil {
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		signedReq.Body = io.NopCloser(bytes.NewReader(payload))
	}
	sum := sha256.Sum256(payload)

	err = t.signer.SignHTTP(
		req.Context(),
		creds,
		signedReq,
		hex.EncodeToString(sum[:]),
		t.service,
		t.region,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	return t.next.RoundTrip(signedReq)
}
