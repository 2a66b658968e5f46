package learning

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var stopWords = set(
	"a", "an", "the", "and", "or", "but", "if", "then", "so", "to", "of", "in",
	"on", "at", "by", "for", "with", "about", "as", "into", "from", "up", "down",
	"is", "am", "are", "was", "were", "be", "been", "being", "do", "does", "did",
	"have", "has", "had", "i", "me", "my", "mine", "you", "your", "yours", "he",
	"him", "his", "she", "her", "hers", "it", "its", "we", "us", "our", "they",
	"them", "their", "this", "that", "these", "those", "there", "here", "what",
	"which", "who", "whom", "when", "where", "why", "how", "not", "no", "can",
	"will", "just", "im", "i'm", "it's", "its", "dont", "don't", "too", "very",
	"all", "any", "some", "out", "than", "also", "would", "could", "should",
	"get", "got", "like", "really", "yeah", "oh", "ok", "okay",
)

var positiveWords = set(
	"good", "great", "awesome", "amazing", "love", "loved", "lovely", "nice",
	"happy", "glad", "cool", "fun", "best", "excited", "yay", "wonderful",
	"fantastic", "beautiful", "cute", "perfect", "thanks", "thank", "appreciate",
	"enjoy", "enjoyed", "win", "won", "proud", "sweet", "pog", "poggers", "based",
)

var negativeWords = set(
	"bad", "terrible", "awful", "hate", "hated", "sad", "angry", "mad", "annoying",
	"annoyed", "worst", "boring", "tired", "sucks", "suck", "ugh", "upset", "lost",
	"lose", "cry", "crying", "depressed", "stressed", "hurt", "sick", "horrible",
	"disappointed", "lonely", "cringe", "badly",
)

var humorWords = set(
	"lol", "lmao", "lmfao", "rofl", "haha", "hahaha", "hehe", "xd", "kek", "funny",
	"joke", "joking", "lul", "icl", "dead", "💀", "😂", "🤣",
)

var formalMarkers = set(
	"please", "thank", "regards", "however", "therefore", "furthermore",
	"kindly", "sincerely", "appreciate", "certainly", "indeed", "moreover",
	"apologies", "regarding", "nevertheless",
)

var informalMarkers = set(
	"lol", "lmao", "gonna", "wanna", "gotta", "ya", "u", "ur", "bruh", "nah",
	"yep", "idk", "tbh", "omg", "yo", "sup", "dude", "bro", "kinda", "sorta",
	"ngl", "fr", "lowkey", "highkey",
)

var greetingWords = set(
	"hi", "hello", "hey", "heya", "hiya", "yo", "sup", "hola", "howdy", "gm",
	"morning", "evening", "hai",
)

// topicKeywords are the keyword lists for the topic category counters.
var topicKeywords = map[string]map[string]struct{}{
	"gaming": set(
		"game", "games", "gaming", "osu", "play", "playing", "played", "ranked",
		"valorant", "minecraft", "league", "fortnite", "steam", "controller",
		"fps", "pp", "beatmap", "map", "gacha", "genshin", "elden", "xbox",
		"playstation", "nintendo", "switch", "grind", "grinding",
	),
	"tech": set(
		"code", "coding", "programming", "computer", "pc", "linux", "windows",
		"python", "golang", "javascript", "server", "bug", "laptop", "gpu", "cpu",
		"keyboard", "mouse", "ai", "app", "website", "phone", "tech", "software",
	),
	"entertainment": set(
		"movie", "movies", "film", "show", "series", "anime", "manga", "music",
		"song", "songs", "album", "band", "concert", "netflix", "youtube", "stream",
		"streamer", "tv", "episode", "book", "books", "kpop",
	),
}

// topicTags are the interest tags added once a category counter is sustained.
var topicTags = map[string]string{
	"gaming":        "gaming",
	"tech":          "technology",
	"entertainment": "entertainment",
}
