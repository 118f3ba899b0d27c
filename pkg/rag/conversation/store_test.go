package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndGetHistory(t *testing.T) {
	s := NewStore(Config{MemoryExchanges: 2, SystemPrompt: "You are a helpful assistant."}, nil)

	s.Append("sess-1",
		Turn{Role: RoleHuman, Content: "Apa itu KRS?"},
		Turn{Role: RoleAI, Content: "KRS adalah Kartu Rencana Studi."},
	)

	got := s.GetHistory("sess-1")
	require.Len(t, got, 3)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, "Apa itu KRS?", got[1].Content)
	assert.Equal(t, RoleAI, got[2].Role)
}

func TestStore_HumanTurnsAreUnwrapped(t *testing.T) {
	s := NewStore(Config{}, nil)

	s.Append("sess-1", Turn{Role: RoleHuman, Content: "konteks panjang...\nQuery: $Berapa SKS Termodinamika?$"})

	got := s.GetHistory("sess-1")
	require.Len(t, got, 1)
	assert.Equal(t, "Berapa SKS Termodinamika?", got[0].Content)
}

func TestStore_DollarSpansInPlainTurnsSurvive(t *testing.T) {
	s := NewStore(Config{}, nil)

	question := "apakah beasiswa menutup biaya $1200$ atau hanya $800$?"
	s.Append("sess-1", Turn{Role: RoleHuman, Content: question})

	got := s.GetHistory("sess-1")
	require.Len(t, got, 1)
	assert.Equal(t, question, got[0].Content)
}

func TestStore_TrimKeepsSystemAndLastPairs(t *testing.T) {
	s := NewStore(Config{MemoryExchanges: 1, SystemPrompt: "system"}, nil)

	for i := 1; i <= 3; i++ {
		s.Append("sess-1",
			Turn{Role: RoleHuman, Content: fmt.Sprintf("q%d", i)},
			Turn{Role: RoleAI, Content: fmt.Sprintf("a%d", i)},
		)
	}

	got := s.GetHistory("sess-1")
	require.Len(t, got, 3)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, "q3", got[1].Content)
	assert.Equal(t, "a3", got[2].Content)
}

func TestStore_TrimKeepsDanglingHuman(t *testing.T) {
	s := NewStore(Config{MemoryExchanges: 1}, nil)

	s.Append("sess-1",
		Turn{Role: RoleHuman, Content: "q1"},
		Turn{Role: RoleAI, Content: "a1"},
	)
	s.Append("sess-1", Turn{Role: RoleHuman, Content: "q2"})

	got := s.GetHistory("sess-1")
	require.Len(t, got, 3)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)
	assert.Equal(t, "q2", got[2].Content)
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		n     int
		want  []string
	}{
		{
			name:  "empty",
			turns: nil,
			n:     1,
			want:  nil,
		},
		{
			name: "fewer pairs than limit keeps all",
			turns: []Turn{
				{Role: RoleHuman, Content: "q1"}, {Role: RoleAI, Content: "a1"},
			},
			n:    3,
			want: []string{"q1", "a1"},
		},
		{
			name: "oldest pair dropped first",
			turns: []Turn{
				{Role: RoleSystem, Content: "sys"},
				{Role: RoleHuman, Content: "q1"}, {Role: RoleAI, Content: "a1"},
				{Role: RoleHuman, Content: "q2"}, {Role: RoleAI, Content: "a2"},
			},
			n:    1,
			want: []string{"sys", "q2", "a2"},
		},
		{
			name: "dangling human survives",
			turns: []Turn{
				{Role: RoleHuman, Content: "q1"}, {Role: RoleAI, Content: "a1"},
				{Role: RoleHuman, Content: "q2"}, {Role: RoleAI, Content: "a2"},
				{Role: RoleHuman, Content: "q3"},
			},
			n:    1,
			want: []string{"q2", "a2", "q3"},
		},
		{
			name: "system only",
			turns: []Turn{
				{Role: RoleSystem, Content: "sys"},
			},
			n:    1,
			want: []string{"sys"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trim(tt.turns, tt.n)
			contents := make([]string, 0, len(got))
			for _, turn := range got {
				contents = append(contents, turn.Content)
			}
			if tt.want == nil {
				assert.Empty(t, contents)
				return
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(Config{SessionTTL: 50 * time.Millisecond, SweepInterval: 10 * time.Millisecond}, nil)

	s.Append("sess-1", Turn{Role: RoleHuman, Content: "q1"})
	require.Equal(t, 1, s.Len())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, s.Len())

	// A swept session comes back empty rather than erroring
	assert.Empty(t, s.GetHistory("sess-1"))
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(Config{SystemPrompt: "sys"}, nil)

	s.Append("sess-1", Turn{Role: RoleHuman, Content: "q1"}, Turn{Role: RoleAI, Content: "a1"})
	s.Reset("sess-1")

	got := s.GetHistory("sess-1")
	require.Len(t, got, 1)
	assert.Equal(t, RoleSystem, got[0].Role)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore(Config{MemoryExchanges: 100}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append("sess-1",
				Turn{Role: RoleHuman, Content: fmt.Sprintf("q%d", i)},
				Turn{Role: RoleAI, Content: fmt.Sprintf("a%d", i)},
			)
		}(i)
	}
	wg.Wait()

	got := s.GetHistory("sess-1")
	assert.Len(t, got, 40)
}
