package roleconf

import (
	"fmt"
	"os"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

const (
	KeyParties     = "n_parties"
	KeyTrees       = "n_trees"
	KeyDepth       = "depth"
	KeyMaxNumBin   = "max_num_bin"
	KeyDataFormat  = "data_format"
	KeyObjective   = "objective"
	KeyLearnRate   = "learning_rate"
	KeyVerbose     = "verbose"
	KeyMode        = "mode"
	KeyPrivacyTech = "privacy_tech"
	KeyData        = "data"
	KeyFeatures    = "n_features"
	KeyTestData    = "test_data"
	KeyIPAddress   = "ip_address"

	ModeHorizontal = "horizontal"
	ModeVertical   = "vertical"
	PrivacySA      = "sa"
	PrivacyHE      = "he"

	// serverShard is the party file the server loads under the vertical protocol.
	serverShard = 1
)

// DefaultFeatures is the built-in dataset feature-count table.
var DefaultFeatures = map[string]int{
	"breast_horizontal": 30,
}

// Catalog resolves dataset files and metadata.
type Catalog interface {
	FeatureCount(dataset string) (int, bool)
	DataPath(dataset string, index int) string
	TestDataPath(dataset string) (string, bool)
}

type StaticCatalog struct {
	Dir      string
	Features map[string]int
}

var _ Catalog = (*StaticCatalog)(nil)

func NewStaticCatalog(dir string, extra map[string]int) *StaticCatalog {
	features := make(map[string]int, len(DefaultFeatures)+len(extra))
	for k, v := range DefaultFeatures {
		features[k] = v
	}
	for k, v := range extra {
		features[k] = v
	}
	if dir == "" {
		dir = "./data"
	}

	return &StaticCatalog{Dir: dir, Features: features}
}

func (c *StaticCatalog) FeatureCount(dataset string) (int, bool) {
	n, ok := c.Features[dataset]

	return n, ok
}

func (c *StaticCatalog) DataPath(dataset string, index int) string {
	return fmt.Sprintf("%s/%s_%d.csv", c.Dir, dataset, index)
}

func (c *StaticCatalog) TestDataPath(dataset string) (string, bool) {
	p := fmt.Sprintf("%s/%s_test.csv", c.Dir, dataset)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}

	return p, true
}

// Translate builds the configuration of one role. clientIndex is ignored for the server.
func Translate(desc job.Description, role job.Role, clientIndex int, catalog Catalog) (RoleConfig, error) {
	if desc.Framework != job.Framework {
		return RoleConfig{}, fmt.Errorf("framework must be %q: %w", job.Framework, pkgerrors.ErrConfig)
	}
	if desc.Deployment.Mode != job.DeploymentMode {
		return RoleConfig{}, fmt.Errorf("deployment mode must be %q: %w", job.DeploymentMode, pkgerrors.ErrConfig)
	}

	tp := desc.Training.TreeParam
	c := New()
	c.Set(KeyParties, len(desc.Deployment.Participants)-1)
	c.Set(KeyTrees, tp.NTrees)
	c.Set(KeyDepth, tp.MaxDepth)
	c.Set(KeyMaxNumBin, tp.MaxNumBin)
	c.Set(KeyDataFormat, "csv")
	c.Set(KeyObjective, tp.Objective)
	c.Set(KeyLearnRate, tp.LearningRate)
	c.Set(KeyVerbose, 1)

	switch desc.Algorithm {
	case job.HistSecAgg:
		c.Set(KeyMode, ModeHorizontal)
		c.Set(KeyPrivacyTech, PrivacySA)
	case job.SecureBoost:
		c.Set(KeyMode, ModeVertical)
		c.Set(KeyPrivacyTech, PrivacyHE)
	default:
		return RoleConfig{}, fmt.Errorf("unknown algorithm %q: %w", desc.Algorithm, pkgerrors.ErrConfig)
	}

	switch role {
	case job.RoleServer:
		if desc.Algorithm == job.SecureBoost {
			c.Set(KeyData, catalog.DataPath(desc.Dataset, serverShard))
		}
	case job.RoleClient:
		if clientIndex < 0 {
			return RoleConfig{}, fmt.Errorf("client index %d out of range: %w", clientIndex, pkgerrors.ErrTopology)
		}
		c.Set(KeyData, catalog.DataPath(desc.Dataset, clientIndex))
		if desc.Algorithm == job.HistSecAgg {
			n, ok := catalog.FeatureCount(desc.Dataset)
			if !ok {
				return RoleConfig{}, fmt.Errorf("no feature count for dataset %q: %w", desc.Dataset, pkgerrors.ErrUnknownDataset)
			}
			c.Set(KeyFeatures, n)
		}
		if p, ok := catalog.TestDataPath(desc.Dataset); ok {
			c.Set(KeyTestData, p)
		}
	default:
		return RoleConfig{}, fmt.Errorf("unknown role %q: %w", role, pkgerrors.ErrConfig)
	}

	return c, nil
}
