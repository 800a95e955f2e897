package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"gopkg.in/yaml.v3"
)

// Manifest defines a declarative seed set.
type Manifest struct {
	Name       string              `yaml:"name"`
	Templates  []workflow.Template `yaml:"templates,omitempty"`
	AwardTypes []ManifestAwardType `yaml:"award_types,omitempty"`
	Wallets    []ManifestWallet    `yaml:"wallets,omitempty"`
}

// ManifestAwardType defines one award catalog row.
type ManifestAwardType struct {
	Key            string `yaml:"key"`
	Label          string `yaml:"label"`
	AuthorPoints   int64  `yaml:"author_points"`
	ReviewerPoints int64  `yaml:"reviewer_points"`
}

// ManifestWallet defines one demo account grant.
type ManifestWallet struct {
	OwnerID     int64  `yaml:"owner_id"`
	Grant       int64  `yaml:"grant"`
	Description string `yaml:"description,omitempty"`
}

// LoadManifest reads and decodes one manifest file. Unknown fields are
// rejected so manifest typos fail loudly instead of seeding nothing.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var manifest Manifest
	if err := dec.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return manifest, nil
}

// ValidateManifest enforces the manifest-level rules before anything is
// applied: a manifest name, unique explicit template ids, unique award
// type keys, and positive one-per-owner grants. Template structure is
// validated by the review service when stored.
func ValidateManifest(manifest Manifest) error {
	if strings.TrimSpace(manifest.Name) == "" {
		return fmt.Errorf("manifest name is required")
	}

	templateIDs := make(map[string]bool, len(manifest.Templates))
	for _, tpl := range manifest.Templates {
		id := strings.TrimSpace(tpl.ID)
		if id == "" {
			return fmt.Errorf("manifest %s: template id is required", manifest.Name)
		}
		if templateIDs[id] {
			return fmt.Errorf("manifest %s: duplicate template %q", manifest.Name, id)
		}
		templateIDs[id] = true
		if !tpl.ActivityType.Valid() {
			return fmt.Errorf("manifest %s: template %q declares unknown activity type %q", manifest.Name, id, tpl.ActivityType)
		}
	}

	awardKeys := make(map[string]bool, len(manifest.AwardTypes))
	for _, at := range manifest.AwardTypes {
		key := strings.TrimSpace(at.Key)
		if key == "" {
			return fmt.Errorf("manifest %s: award type key is required", manifest.Name)
		}
		if awardKeys[key] {
			return fmt.Errorf("manifest %s: duplicate award type %q", manifest.Name, key)
		}
		awardKeys[key] = true
		if at.AuthorPoints < 0 || at.ReviewerPoints < 0 {
			return fmt.Errorf("manifest %s: award type %q declares negative points", manifest.Name, key)
		}
	}

	walletOwners := make(map[int64]bool, len(manifest.Wallets))
	for _, wallet := range manifest.Wallets {
		if wallet.OwnerID <= 0 {
			return fmt.Errorf("manifest %s: wallet owner id must be positive", manifest.Name)
		}
		if walletOwners[wallet.OwnerID] {
			return fmt.Errorf("manifest %s: duplicate wallet for owner %d", manifest.Name, wallet.OwnerID)
		}
		walletOwners[wallet.OwnerID] = true
		if wallet.Grant <= 0 {
			return fmt.Errorf("manifest %s: wallet %d grant must be positive", manifest.Name, wallet.OwnerID)
		}
	}

	return nil
}
