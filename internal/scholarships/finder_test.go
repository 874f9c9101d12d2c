package scholarships

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/llm"
	"unipal-workers/internal/models"
)

func createTestProfile() models.StudentProfile {
	ielts := 7.5
	return models.StudentProfile{
		Name:                      "Asha",
		ContactInfo:               "asha@example.com",
		Marks10th:                 92,
		Marks12th:                 90,
		BtechCGPA:                 8.7,
		IELTSScore:                &ielts,
		PreferredCountries:        []string{"USA", "Germany"},
		BtechBranch:               "Mechanical",
		InterestedFieldForMasters: "Robotics",
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantNames []string
		wantFirst models.ScholarshipInfo
	}{
		{
			name: "labelled blocks",
			reply: "Name: Fulbright-Nehru\nDescription: Masters funding\nEligibility: Indian citizens\nAmount: Full tuition\n\n" +
				"Name: DAAD\nDescription: German study\nEligibility: Graduates\nAmount: EUR 934/month",
			wantNames: []string{"Fulbright-Nehru", "DAAD"},
			wantFirst: models.ScholarshipInfo{
				Name: "Fulbright-Nehru", Description: "Masters funding",
				Eligibility: "Indian citizens", Amount: "Full tuition",
			},
		},
		{
			name:      "numbered positional blocks",
			reply:     "1. Inlaks\n2. For Indians abroad\n3. Under 30\n4. USD 100,000\n\n\n1. Tata\n2. Cornell\n3. Need based\n4. Varies",
			wantNames: []string{"Inlaks", "Tata"},
			wantFirst: models.ScholarshipInfo{
				Name: "Inlaks", Description: "For Indians abroad", Eligibility: "Under 30", Amount: "USD 100,000",
			},
		},
		{
			name:      "markdown labels",
			reply:     "- **Scholarship Name:** Chevening\n- **Description:** UK government\n- **Eligibility:** 2 years work\n- **Award Amount:** Full",
			wantNames: []string{"Chevening"},
			wantFirst: models.ScholarshipInfo{
				Name: "Chevening", Description: "UK government", Eligibility: "2 years work", Amount: "Full",
			},
		},
		{
			name:      "json array capped at three",
			reply:     "```json\n[{\"name\":\"A\"},{\"name\":\"B\"},{\"name\":\"C\"},{\"name\":\"D\"}]\n```",
			wantNames: []string{"A", "B", "C"},
			wantFirst: models.ScholarshipInfo{Name: "A"},
		},
		{
			name:      "prose is ignored",
			reply:     "I could not find any scholarships.",
			wantNames: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.reply)
			names := make([]string, len(got))
			for i, s := range got {
				names[i] = s.Name
			}
			assert.Equal(t, tt.wantNames, names)
			if len(got) > 0 {
				assert.Equal(t, tt.wantFirst, got[0])
			}
		})
	}
}

func TestFind(t *testing.T) {
	var prompt string
	client := llm.ClientFunc(func(_ context.Context, p, _ string) (string, error) {
		prompt = p
		return "Name: A\nDescription: d\nEligibility: e\nAmount: 1\n\nName: B\nDescription: d\nEligibility: e\nAmount: 2", nil
	})

	unis := []models.University{{Name: "TU Munich", Country: "Germany"}}
	got := NewFinder(client, logger.NewNoOpLogger()).Find(context.Background(), createTestProfile(), unis)

	require.Len(t, got, 2)
	assert.Contains(t, prompt, "Preferred Countries: USA, Germany")
	assert.Contains(t, prompt, "IELTS Score: 7.5")
	assert.Contains(t, prompt, "TOEFL Score: N/A")
	assert.Contains(t, prompt, "TU Munich (Germany)")
	assert.True(t, strings.Contains(prompt, "top 3 scholarships"))
}

func TestFind_ModelErrorYieldsEmptyList(t *testing.T) {
	client := llm.ClientFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("LLM_TIMEOUT")
	})

	got := NewFinder(client, nil).Find(context.Background(), createTestProfile(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
