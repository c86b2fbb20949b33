package filter

// Built-in word lists. Hubs layer their own block-word rules on top of
// these; the defaults only cover the generic categories every hub gets.
var defaultProfanity = []string{
	"ass",
	"asshole",
	"bastard",
	"bitch",
	"bullshit",
	"crap",
	"cunt",
	"dick",
	"dickhead",
	"douchebag",
	"fuck",
	"fucker",
	"fucking",
	"jackass",
	"motherfucker",
	"piss",
	"prick",
	"pussy",
	"shit",
	"shitty",
	"slut",
	"twat",
	"wanker",
	"whore",
}

var defaultSlurs = []string{
	"chink",
	"fag",
	"faggot",
	"kike",
	"nigga",
	"nigger",
	"retard",
	"spic",
	"tranny",
}
