package dialogue

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/torosent/dialogfire/internal/chat"
)

// PhraseBank maps a category to the user phrases that synthesize its traffic.
type PhraseBank map[chat.Category][]string

var defaultBank = PhraseBank{
	chat.CategoryDepression: {
		"Я чувствую себя подавленным последнее время.",
		"Мне сложно находить радость в обычных вещах.",
		"Я постоянно чувствую усталость и апатию.",
		"Мне кажется, что ничего хорошего в будущем не ждет.",
		"Мне сложно сосредоточиться на работе.",
		"Я стал плохо спать по ночам.",
		"Я часто думаю о смысле жизни.",
		"Мне сложно заставить себя что-то делать.",
	},
	chat.CategoryBurnout: {
		"Я чувствую выгорание на работе.",
		"Мой начальник постоянно меня критикует.",
		"Мне кажется, что моя работа бессмысленна.",
		"Я не справляюсь с нагрузкой на работе.",
		"Коллеги не ценят мой вклад в проекты.",
		"Я не вижу перспектив роста в компании.",
		"Я часто беру работу на дом и не отдыхаю.",
		"Мне сложно отказывать, когда просят о дополнительных задачах.",
	},
	chat.CategoryRelationships: {
		"Мы с партнером постоянно ссоримся.",
		"Я чувствую, что партнер меня не понимает.",
		"Я не уверен(а), что наши отношения имеют будущее.",
		"Мы отдалились друг от друга в последнее время.",
		"Я не могу доверять своему партнеру после измены.",
		"Мы перестали разговаривать о важных вещах.",
		"Я чувствую, что отношения меня истощают.",
		"Мы по-разному смотрим на будущее.",
	},
}

// FollowUps are appended to turns after the first with even odds.
var FollowUps = []string{
	"Что мне делать?",
	"Как с этим справиться?",
	"Это нормально?",
	"Почему так происходит?",
}

// DefaultBank returns the built-in phrase bank.
func DefaultBank() PhraseBank {
	out := make(PhraseBank, len(defaultBank))
	for c, phrases := range defaultBank {
		out[c] = append([]string(nil), phrases...)
	}
	return out
}

// Phrases returns the phrases of c. Unknown categories use the first one.
func (b PhraseBank) Phrases(c chat.Category) []string {
	if p, ok := b[c]; ok && len(p) > 0 {
		return p
	}
	return b[chat.CategoryDepression]
}

// Generate returns n user turns for category c drawn from rnd.
func (b PhraseBank) Generate(c chat.Category, n int, rnd *rand.Rand) []string {
	if n <= 0 {
		return nil
	}
	phrases := b.Phrases(c)
	turns := make([]string, n)
	for i := range turns {
		turn := phrases[rnd.Intn(len(phrases))]
		if i > 0 && rnd.Float64() > 0.5 {
			turn += " " + FollowUps[rnd.Intn(len(FollowUps))]
		}
		turns[i] = turn
	}
	return turns
}

// GenerateUserID returns a synthetic user id of the form
// test_user_<unix seconds>_<1000..9999>.
func GenerateUserID(now time.Time, rnd *rand.Rand) string {
	return fmt.Sprintf("test_user_%d_%d", now.Unix(), 1000+rnd.Intn(9000))
}
