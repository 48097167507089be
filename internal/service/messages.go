package service

// Curated encouragement messages for the daily faith nudge. One is
// picked uniformly at random per scheduled reminder.
var faithMessages = []string{
	"Be strong and courageous. Do not be afraid; the Lord your God goes with you. (Deut 31:6)",
	"I can do all things through Christ who strengthens me. (Phil 4:13)",
	"The Lord is my shepherd; I shall not want. (Psalm 23:1)",
	"Cast all your anxiety on Him because He cares for you. (1 Peter 5:7)",
	"Let your light shine before others. (Matt 5:16)",
	"Trust in the Lord with all your heart. (Prov 3:5)",
	"This is the day the Lord has made; rejoice and be glad in it. (Psalm 118:24)",
	"And we know that in all things God works for the good of those who love Him. (Rom 8:28)",
}
