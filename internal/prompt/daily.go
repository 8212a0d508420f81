// ABOUTME: Deterministic daily verse and vocabulary word selection
// ABOUTME: Indexes fixed lists by local days since the Unix epoch, wrapping around

package prompt

import (
	"fmt"
	"time"
)

// Verse is one scripture entry.
type Verse struct {
	Ref  string
	Text string
}

func (v Verse) String() string {
	return fmt.Sprintf("%s (%s)", v.Text, v.Ref)
}

// Word is one vocabulary entry.
type Word struct {
	Word    string
	Meaning string
	Example string
}

func (w Word) String() string {
	return fmt.Sprintf("%s: %s. e.g. %q", w.Word, w.Meaning, w.Example)
}

// DailyContent is the pair of items shown for one day.
type DailyContent struct {
	Verse Verse
	Word  Word
}

// DayIndex returns whole days since 1970-01-01 as observed in loc.
func DayIndex(t time.Time, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	_, offset := t.In(loc).Zone()
	secs := t.Unix() + int64(offset)
	days := secs / 86400
	if secs%86400 < 0 {
		days--
	}
	return days
}

// DailyContentFor selects the content for the local day containing t.
func DailyContentFor(t time.Time, loc *time.Location) *DailyContent {
	day := DayIndex(t, loc)
	return &DailyContent{
		Verse: dailyVerses[wrap(day, len(dailyVerses))],
		Word:  dailyWords[wrap(day, len(dailyWords))],
	}
}

func wrap(day int64, n int) int {
	i := day % int64(n)
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

var dailyVerses = []Verse{
	{"시편 34:18", "여호와께서 상하게 부서진 자의 영혼을 구원하시며 그들의 모든 뼈를 보호하시나니"},
	{"로마서 8:28", "우리가 알거니와 하나님을 사랑하는 자 곧 그의 뜻대로 부르심을 입은 자들에게는 모든 것이 합력하여 선을 이루느니라"},
	{"시편 91:1-2", "지존자의 은밀한 곳에 거주하며 전능자의 그늘 아래에 사는 자여"},
	{"마태복음 6:34", "그러므로 내일 일을 위하여 염려하지 말라 내일 일은 내일이 염려할 것이요 한 날의 괴로움은 그 날로 족하니라"},
	{"시편 27:1", "여호와는 나의 빛이요 나의 구원이시니 내가 누구를 두려워하리요"},
	{"시편 46:1", "하나님은 우리의 피난처시요 힘이시니 환난 중에 만날 큰 도움이시라"},
	{"이사야 40:31", "오직 여호와를 앙망하는 자는 새 힘을 얻으리니 독수리가 날개치며 올라감 같을 것이요"},
	{"빌립보서 4:6-7", "아무 것도 염려하지 말고 다만 모든 일에 기도와 간구로 너희 구할 것을 감사함으로 하나님께 아뢰라"},
	{"마태복음 11:28", "수고하고 무거운 짐 진 자들아 다 내게로 오라 내가 너희를 쉬게 하리라"},
	{"출애굽기 14:14", "여호와께서 너희를 위하여 싸우시리니 너희는 가만히 있을지니라"},
	{"요한복음 16:33", "세상에서는 너희가 환난을 당하나 담대하라 내가 세상을 이기었노라"},
	{"빌립보서 4:13", "내게 능력 주시는 자 안에서 내가 모든 것을 할 수 있느니라"},
	{"이사야 41:10", "두려워하지 말라 내가 너와 함께 함이라 놀라지 말라 나는 네 하나님이 됨이라"},
	{"시편 23:1", "여호와는 나의 목자시니 내게 부족함이 없으리로다"},
}

var dailyWords = []Word{
	{"vary", "바꾸다, 변경하다", "Prices vary according to the season."},
	{"dwindle", "서서히 줄어들다", "Their savings began to dwindle."},
	{"ascertain", "확정하다, 확인하다", "We need to ascertain the facts."},
	{"intimidate", "위협하다", "Don't let them intimidate you."},
	{"confer", "상의하다, 수여하다", "The degree was conferred upon him."},
	{"archaic", "구식의, 오래된", "The law is now archaic."},
	{"subdue", "진압하다, 억제하다", "He managed to subdue his anger."},
	{"reassure", "안심시키다", "She reassured him that everything would be fine."},
	{"utilize", "이용하다, 활용하다", "We should utilize our resources efficiently."},
	{"tranquil", "차분한, 평온한", "The lake was calm and tranquil."},
	{"obsolete", "쓸모없게 된, 구식의", "CDs are becoming obsolete."},
	{"lucrative", "수익성이 좋은", "This is a very lucrative business."},
	{"prominent", "뛰어난, 유명한", "He is a prominent figure in the community."},
	{"advocate", "지지하다, 옹호하다", "He advocates for human rights."},
	{"comprise", "구성하다, 포함하다", "The committee comprises ten members."},
	{"disperse", "흩어지게 하다", "The crowd began to disperse."},
}
