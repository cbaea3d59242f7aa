package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/chronoeffector/orchestrator/core"
)

// NonEmptyOutput approves any output that stringifies to a non-empty value.
// It is the baseline sanity check on the default panel.
func NonEmptyOutput() Validator {
	return Validator{
		Name: "non_empty_output",
		Judge: func(output any, _ core.Context) (bool, float64, error) {
			if output == nil {
				return false, 1, nil
			}
			s := strings.TrimSpace(fmt.Sprint(output))
			return s != "" && s != "map[]", 1, nil
		},
	}
}

// QualityScore derives a pseudo-quality score from the output hash and
// approves when it clears the expected threshold. The task's validation
// context may override the threshold via an "expected_quality" entry.
func QualityScore(expected float64) Validator {
	return Validator{
		Name: "quality_score",
		Judge: func(output any, vc core.Context) (bool, float64, error) {
			threshold := expected
			if v, ok := vc["expected_quality"]; ok {
				switch t := v.(type) {
				case float64:
					threshold = t
				case string:
					if parsed, err := strconv.ParseFloat(t, 64); err == nil {
						threshold = parsed
					}
				}
			}

			sum := sha256.Sum256([]byte(fmt.Sprint(output)))
			prefix := hex.EncodeToString(sum[:])[:4]
			n, err := strconv.ParseUint(prefix, 16, 32)
			if err != nil {
				return false, 0, err
			}
			score := float64(n) / 65535
			return score >= threshold, score, nil
		},
	}
}
