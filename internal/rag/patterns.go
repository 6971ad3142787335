package rag

// Pattern tables per category. Each matching pattern adds its weight to the
// category score. Spanish entries follow the English ones.

var mathPatterns = []weightedPattern{
	{`\b\d+\s*[\+\-\*\/\^]\s*\d+`, 1.5},
	{`\bcalcul(a|e|ate)`, 1.0},
	{`\bsolve\b`, 1.0},
	{`\bequation\b`, 1.0},
	{`\bmath(ematic)?s?\b`, 1.0},
	{`\bformula\b`, 1.0},
	{`\balgebra(ic)?\b`, 1.0},
	{`\bgeometry\b`, 1.0},
	{`\btrigonometry\b`, 1.0},
	{`\bcalculus\b`, 1.0},
	{`\bderivative\b`, 1.0},
	{`\bintegral\b`, 1.0},
	{`\bstatistics?\b`, 1.0},
	{`\bprobability\b`, 1.0},
	{`\bpercentage\b`, 1.0},
	{`\bfraction\b`, 1.0},
	{`\bsquare root\b`, 1.8},
	{`\blogarithm\b`, 1.5},
	{`\bexponent\b`, 1.5},
	{`\bprime number\b`, 1.5},
	{`\bfactorial\b`, 1.5},
	{`\bsum of\b`, 1.0},
	{`\bproduct of\b`, 1.0},
	{`\baverage\b`, 1.0},
	{`\bmean\b`, 0.8},
	{`\bmedian\b`, 1.0},
	{`\bstandard deviation\b`, 1.0},
	{`\bwhat is \d+`, 1.2},
	{`\bhow much is\b`, 1.2},
	{`\bconvert\s+\d+`, 1.0},
	{`\b\d+\s*%\s*(of|de)\b`, 2.0},
	{`\bwhat\s+is\s+\d+\s*%`, 2.0},
	{`\bif\s+(i|you|we|they)\s+(have|had)\s+\d+`, 1.5},
	{`\bif\s+there\s+(are|is|were|was)\s+\d+`, 1.5},
	{`\bhow\s+many\s+.*\bleft\b`, 1.2},
	{`\bhow\s+many\s+.*\bin\s+total\b`, 1.2},
	{`\btotal\s+(cost|price|amount|number)\b`, 1.2},
	{`\b(faster|slower|more|less)\s+than\b`, 1.0},
	{`\bspeed\s+of\b`, 0.8},
	{`\bdistance\s+(from|to|between)\b`, 1.0},
	{`\btime\s+to\s+(travel|reach|complete)\b`, 1.0},
	{`\barea\s+of\s+(a|an|the)?\s*(circle|square|rectangle|triangle)\b`, 1.5},
	{`\bperimeter\s+of\b`, 1.2},
	{`\bvolume\s+of\b`, 1.2},
	{`\bradius\s+\d+`, 1.2},
	{`\bsimplify\b`, 1.0},
	{`\b\d+x\s*[\+\-]\s*\d+`, 1.5},

	{`\b\d+\s*[\+\-\*\/\^]\s*\d+`, 1.5},
	{`\bcu[aá]nto\s+(es|son|vale|da)\b`, 1.5},
	{`\bcalcul(a|ar|e|o)\b`, 1.0},
	{`\bresuelv(e|a|er|o)\b`, 1.0},
	{`\bresolver\b`, 1.0},
	{`\becuaci[oó]n(es)?\b`, 1.0},
	{`\bmatem[aá]tica(s)?\b`, 1.0},
	{`\bf[oó]rmula(s)?\b`, 1.0},
	{`\b[aá]lgebra\b`, 1.0},
	{`\bgeometr[ií]a\b`, 1.0},
	{`\btrigonometr[ií]a\b`, 1.0},
	{`\bc[aá]lculo\b`, 1.0},
	{`\bderivada(s)?\b`, 1.0},
	{`\bintegral(es)?\b`, 1.0},
	{`\bestad[ií]stica(s)?\b`, 1.0},
	{`\bprobabilidad(es)?\b`, 1.0},
	{`\bporcentaje(s)?\b`, 1.0},
	{`\bfracci[oó]n(es)?\b`, 1.0},
	{`\bra[ií]z\s+cuadrada\b`, 1.0},
	{`\blogaritmo(s)?\b`, 1.0},
	{`\bexponente(s)?\b`, 1.0},
	{`\bn[uú]mero(s)?\s+primo(s)?\b`, 1.0},
	{`\bfactorial\b`, 1.0},
	{`\bsuma\s+de\b`, 1.0},
	{`\bsuma(r|ndo)?\b`, 1.0},
	{`\bresta\s+de\b`, 1.0},
	{`\bresta(r|ndo)?\b`, 1.0},
	{`\bmultiplica(r|ci[oó]n)?\b`, 1.0},
	{`\bdivid(e|ir|iendo)\b`, 1.0},
	{`\bdivisi[oó]n\b`, 1.0},
	{`\bpromedio\b`, 1.0},
	{`\bmedia\s+de\b`, 1.0},
	{`\bmediana\b`, 1.0},
	{`\bdesviaci[oó]n\s+est[aá]ndar\b`, 1.0},
	{`\bsi\s+tengo\s+\d+`, 1.0},
	{`\bsi\s+hay\s+\d+`, 1.0},
	{`\bcu[aá]ntos?\s+quedan\b`, 1.0},
	{`\bcu[aá]ntos?\s+(hay|tiene|tengo)\b`, 1.0},
	{`\ben\s+total\b`, 1.0},
	{`\btotal\s+de\b`, 1.0},
	{`\bprecio\s+total\b`, 1.0},
	{`\bcosto\s+total\b`, 1.0},
	{`\bdistancia\s+(de|a|entre)\b`, 1.0},
	{`\bvelocidad\s+de\b`, 1.0},
	{`\btiempo\s+(para|en)\b`, 1.0},
	{`\bcu[aá]l\s+es\s+el\s+resultado\b`, 1.0},
	{`\bel\s+\d+\s*%\s+de\b`, 1.0},
	{`\bconvertir\s+\d+`, 1.0},
	{`\bm[aá]s\b.*\bmenos\b`, 0.8},
	{`\bpor\b.*\bentre\b`, 0.8},
}

var codePatterns = []weightedPattern{
	{`\bcode\b`, 1.0},
	{`\bprogram(ming)?\b`, 1.0},
	{`\bfunction\b`, 1.0},
	{`\bclass\b`, 0.8},
	{`\bmethod\b`, 1.0},
	{`\bvariable\b`, 1.0},
	{`\bloop\b`, 1.0},
	{`\barray\b`, 1.0},
	{`\blist\b`, 0.6},
	{`\bdict(ionary)?\b`, 1.0},
	{`\bstring\b`, 0.8},
	{`\binteger\b`, 0.8},
	{`\bfloat\b`, 0.8},
	{`\bboolean\b`, 1.0},
	{`\bnull\b`, 0.8},
	{`\bundefined\b`, 1.0},
	{`\breturn\b`, 0.8},
	{`\bif\s+else\b`, 1.0},
	{`\bfor\s+loop\b`, 1.0},
	{`\bwhile\s+loop\b`, 1.0},
	{`\bpython\b`, 1.0},
	{`\bjavascript\b`, 1.0},
	{`\btypescript\b`, 1.0},
	{`\brust\b`, 1.0},
	{`\bjava\b`, 1.0},
	{`\bc\+\+\b`, 1.0},
	{`\bgo(lang)?\b`, 1.0},
	{`\bruby\b`, 1.0},
	{`\bphp\b`, 1.0},
	{`\bswift\b`, 1.0},
	{`\bkotlin\b`, 1.0},
	{`\bsql\b`, 1.2},
	{`\bquery\b`, 1.0},
	{`\bdatabase\b`, 1.0},
	{`\bselect\s+.*\s+from\b`, 1.5},
	{`\binsert\s+into\b`, 1.5},
	{`\bupdate\s+.*\s+set\b`, 1.5},
	{`\bdelete\s+from\b`, 1.5},
	{`\bjoin\s+(on|table)\b`, 1.2},
	{`\bwhere\s+clause\b`, 1.2},
	{`\bregex\b`, 1.2},
	{`\bregexp?\b`, 1.2},
	{`\bregular\s+expression\b`, 1.5},
	{`\bpattern\s+match(ing)?\b`, 1.2},
	{`\bdebug\b`, 1.0},
	{`\bcompile\b`, 1.0},
	{`\bexecut(e|ion)\b`, 0.8},
	{`\bimplement\b`, 1.0},
	{`\brefactor\b`, 1.0},
	{`\boptimize\b`, 0.8},
	{`\bfix\s+(the\s+)?(bug|error|issue)\b`, 1.2},
	{`\bwrite\s+(a\s+)?(code|function|program|script)\b`, 1.2},
	{`\bhow\s+to\s+(code|program|implement)\b`, 1.0},
	{"```", 1.5},
	{`\bsyntax\b`, 1.0},
	{`\bapi\b`, 1.0},
	{`\bsdk\b`, 1.0},
	{`\blibrary\b`, 0.8},
	{`\bframework\b`, 1.0},
	{`\bpackage\b`, 0.8},
	{`\bmodule\b`, 0.8},
	{`\bimport\b`, 0.8},
	{`\bexport\b`, 0.6},
	{`\balgorithm\b`, 1.0},
	{`\bdata\s+structure\b`, 1.2},
	{`\bdef\s+\w+\s*\(`, 1.5},
	{`\bfn\s+\w+\s*\(`, 1.5},
	{`\bfunction\s+\w+\s*\(`, 1.5},
	{`\bclass\s+\w+\s*[:\{]`, 1.5},
	{`=>\s*\{`, 1.2},
	{`\breturn\s+\w+`, 1.0},

	{`\bc[oó]digo\b`, 1.0},
	{`\bprograma(ci[oó]n|r)?\b`, 1.0},
	{`\bfunci[oó]n(es)?\b`, 1.0},
	{`\bclase(s)?\b`, 0.8},
	{`\bm[eé]todo(s)?\b`, 1.0},
	{`\bvariable(s)?\b`, 1.0},
	{`\bbucle(s)?\b`, 1.0},
	{`\barreglo(s)?\b`, 1.0},
	{`\blista(s)?\b`, 0.8},
	{`\bdiccionario(s)?\b`, 1.0},
	{`\bcadena(s)?\s+de\s+texto\b`, 1.0},
	{`\bentero(s)?\b`, 0.6},
	{`\bbooleano(s)?\b`, 1.0},
	{`\bnulo\b`, 1.0},
	{`\bdepurar\b`, 1.0},
	{`\bcompilar\b`, 1.0},
	{`\bejecutar\b`, 1.0},
	{`\bimplementar\b`, 1.0},
	{`\brefactorizar\b`, 1.0},
	{`\boptimizar\b`, 1.0},
	{`\bcorregir\s+(el\s+)?(error|bug|fallo)\b`, 1.2},
	{`\bescrib(e|ir)\s+(un(a)?\s+)?(c[oó]digo|funci[oó]n|programa)\b`, 1.2},
	{`\bc[oó]mo\s+(hago|hacer|programo|codifico)\b`, 1.0},
	{`\bsintaxis\b`, 1.0},
	{`\bbiblioteca(s)?\b`, 1.0},
	{`\bpaquete(s)?\b`, 0.8},
	{`\bm[oó]dulo(s)?\b`, 0.8},
	{`\bimportar\b`, 1.0},
	{`\bexportar\b`, 0.8},
	{`\balgor[ií]tmo(s)?\b`, 1.0},
	{`\bestructura\s+de\s+datos\b`, 1.2},
	{`\bbase\s+de\s+datos\b`, 1.0},
	{`\bconsulta\s+(sql|de\s+base)\b`, 1.2},
	{`\bexpresi[oó]n\s+regular\b`, 1.2},
}

var reasoningPatterns = []weightedPattern{
	{`\banalyze\b`, 1.0},
	{`\banalysis\b`, 1.0},
	{`\bcompare\b`, 1.0},
	{`\bcomparison\b`, 1.0},
	{`\bcontrast\b`, 1.0},
	{`\bevaluate\b`, 1.0},
	{`\bevaluation\b`, 1.0},
	{`\bcritique\b`, 1.0},
	{`\bcritical\b`, 0.8},
	{`^compare\s+\w+\s+and\s+\w+`, 2.5},
	{`\bcompare\s+\w+\s+(and|vs\.?|versus|with)\s+\w+`, 2.0},
	{`\bpros\s+and\s+cons\b`, 2.0},
	{`\bwhat\s+are\s+the\s+(advantages?|disadvantages?|tradeoffs?|benefits?)\b`, 2.5},
	{`\badvantages?\b`, 1.5},
	{`\bdisadvantages?\b`, 1.5},
	{`\bbenefits?\b`, 1.2},
	{`\bdrawbacks?\b`, 1.5},
	{`\btradeoffs?\b`, 1.8},
	{`^why\s+(is|are|do|does|would|should|did|was|were)\b`, 2.0},
	{`\bwhy\s+(is|are|do|does|would|should)\b`, 1.5},
	{`\bexplain\s+why\b`, 1.5},
	{`\breason(ing|s)?\b`, 1.0},
	{`\blogic(al)?\b`, 1.0},
	{`\bargument\b`, 1.0},
	{`\bhypothesis\b`, 1.0},
	{`\bconclusion\b`, 1.0},
	{`\binfer(ence)?\b`, 1.0},
	{`\bdeduc(e|tion)\b`, 1.0},
	{`\binduc(e|tion)\b`, 1.0},
	{`\bthink\s+(about|through)\b`, 1.0},
	{`\bconsider\b`, 1.0},
	{`\bweigh\b`, 1.0},
	{`\bassess\b`, 1.0},
	{`\bjudge\b`, 0.8},
	{`\bdecide\b`, 1.0},
	{`\bdecision\b`, 1.0},
	{`\bwhat\s+if\b`, 2.0},
	{`\bwhat\s+would\s+happen\b`, 2.0},
	{`\bimagine\s+(if|that)\b`, 1.5},
	{`\bsuppose\b`, 1.5},
	{`\bhypothetically\b`, 1.5},
	{`\bin\s+theory\b`, 1.2},
	{`\bcould\s+.*\bpossibly\b`, 1.2},
	{`\bwould\s+it\s+be\s+possible\b`, 1.2},
	{`\bif\s+.*\bdidn'?t\s+exist\b`, 1.5},
	{`^should\s+i\b`, 2.0},
	{`\bshould\s+i\s+(learn|use|choose|pick|start)\b`, 2.0},
	{`\bunderstanding\s+how\b`, 1.8},
	{`\bunderstand\s+how\b`, 1.8},
	{`\bhow\s+.*\s+work(s)?\s+and\b`, 1.8},
	{`\bhow\s+.*\s+can\s+be\s+(applied|used)\b`, 1.8},
	{`\bapplied\s+to\s+solve\b`, 1.5},
	{`\breal-?world\s+problems?\b`, 1.5},
	{`\bwhich\s+(is|one\s+is)\s+better\b`, 1.5},
	{`\bbetter\s+to\s+(use|learn|choose)\b`, 1.5},
	{`\b(python|javascript|rust)\s+(or|vs\.?)\s+(python|javascript|rust)\b`, 1.5},

	{`\banaliz(a|ar|o)\b`, 1.0},
	{`\ban[aá]lisis\b`, 1.0},
	{`\bcompar(a|ar|o)\b`, 1.0},
	{`\bcomparaci[oó]n\b`, 1.0},
	{`\bcontras?t(a|ar|o)\b`, 1.0},
	{`\beval[uú](a|ar|o)\b`, 1.0},
	{`\bevaluaci[oó]n\b`, 1.0},
	{`\bcritica(r)?\b`, 1.0},
	{`\bcr[ií]tico\b`, 1.0},
	{`\bventajas?\s+y\s+desventajas?\b`, 2.0},
	{`\bpros?\s+y\s+contras?\b`, 2.0},
	{`\bventajas?\b`, 1.0},
	{`\bdesventajas?\b`, 1.0},
	{`\bbeneficios?\b`, 1.0},
	{`\binconvenientes?\b`, 1.0},
	{`^por\s+qu[eé]\b`, 2.0},
	{`\bpor\s+qu[eé]\s+(es|son|est[aá]|funciona)\b`, 1.5},
	{`\bexplica(r)?\s+por\s+qu[eé]\b`, 1.5},
	{`\braz[oó]n(es|amiento)?\b`, 1.0},
	{`\bl[oó]gica?\b`, 1.0},
	{`\bargumento(s)?\b`, 1.0},
	{`\bhip[oó]tesis\b`, 1.0},
	{`\bconclusi[oó]n(es)?\b`, 1.0},
	{`\binferencia(s)?\b`, 1.0},
	{`\bdeducci[oó]n\b`, 1.0},
	{`\binducci[oó]n\b`, 1.0},
	{`\bpiens(a|o)\s+(en|sobre)\b`, 1.0},
	{`\bconsidera(r)?\b`, 1.0},
	{`\bsopes(a|ar)\b`, 1.0},
	{`\bjuzga(r)?\b`, 1.0},
	{`\bdecid(e|ir|o)\b`, 1.0},
	{`\bdecisi[oó]n\b`, 1.0},
	{`\bqu[eé]\s+pasar[ií]a\s+si\b`, 2.0},
	{`\bimagina(r)?\s+que\b`, 1.5},
	{`\bsupon(er|gamos|iendo)\b`, 1.5},
	{`\bhipot[eé]ticamente\b`, 1.5},
	{`\ben\s+teor[ií]a\b`, 1.0},
	{`\bqu[eé]\s+opinas?\b`, 1.0},
	{`\bdeber[ií]a\b`, 1.0},
	{`^deber[ií]a\s+(yo|usar|aprender|elegir)\b`, 2.0},
}

var toolsPatterns = []weightedPattern{
	{`\bsearch\s+(for|the\s+web)\b`, 1.2},
	{`\blook\s+up\b`, 1.0},
	{`\bfind\s+(information|data|results)\b`, 1.0},
	{`\bweb\s+search\b`, 1.2},
	{`\bgoogle\b`, 1.0},
	{`\bbrowse\b`, 0.8},
	{`\bopen\s+(a\s+)?(file|url|link|website)\b`, 1.0},
	{`\bdownload\b`, 1.0},
	{`\bupload\b`, 0.8},
	{`\bsave\s+(to|as)\b`, 1.0},
	{`\bexport\s+to\b`, 1.0},
	{`\bconvert\s+to\b`, 1.0},
	{`\bgenerate\s+(an?\s+)?(image|picture|diagram|chart|photo|illustration)\b`, 1.5},
	{`\bcreate\s+(an?\s+)?(image|picture|photo|illustration|diagram)\b`, 1.5},
	{`\bdraw\s+(a|an|me)?\b`, 1.5},
	{`\bmake\s+(an?\s+)?(image|picture|photo)\b`, 1.5},
	{`\bcreate\s+(a\s+)?(file|document|report)\b`, 1.0},
	{`\bsend\s+(an?\s+)?(email|message)\b`, 1.0},
	{`\bschedule\b`, 1.0},
	{`\breminder\b`, 1.0},
	{`\balarm\b`, 1.0},
	{`\btimer\b`, 1.0},
	{`\bcalendar\b`, 1.0},
	{`\bweather\b`, 1.0},
	{`\bnews\b`, 1.0},
	{`\bstock\s+price\b`, 2.0},
	{`\bstock\s+price\s+of\b`, 2.5},
	{`\bprice\s+of\s+.*\b(stock|share)s?\b`, 2.0},
	{`\btranslate\b`, 1.0},
	{`\btranslation\b`, 1.0},
	{`\blatest\s+(news|updates?)\b`, 1.2},
	{`\bcurrent\s+(price|weather|time)\b`, 1.2},
	{`\btoday'?s?\s+(weather|news|date)\b`, 1.2},

	{`\bbusca(r)?\s+(en\s+)?(la\s+)?web\b`, 1.5},
	{`\bbusca(r)?\s+(en\s+)?internet\b`, 1.5},
	{`\bbusca(r)?\s+informaci[oó]n\b`, 1.0},
	{`\bencontrar\s+(informaci[oó]n|datos|resultados)\b`, 1.0},
	{`\bgooglea(r)?\b`, 1.0},
	{`\bnavega(r)?\b`, 0.8},
	{`\babri(r)?\s+(un(a)?\s+)?(archivo|url|enlace|p[aá]gina)\b`, 1.0},
	{`\bdescargar\b`, 1.0},
	{`\bsubir\b`, 0.8},
	{`\bguardar\s+(en|como)\b`, 1.0},
	{`\bexportar\s+(a|como)\b`, 1.0},
	{`\bconvertir\s+a\b`, 1.0},
	{`\bgenera(r)?\s+(una?\s+)?(imagen|foto|dibujo|ilustraci[oó]n)\b`, 1.5},
	{`\bcrea(r)?\s+(una?\s+)?(imagen|foto|dibujo|ilustraci[oó]n)\b`, 1.5},
	{`\bdibuja(r)?\s+(un(a)?|me)\b`, 1.5},
	{`\bhaz(me)?\s+(una?\s+)?(imagen|foto|dibujo)\b`, 1.5},
	{`\bcrea(r)?\s+(un(a)?\s+)?(archivo|documento|informe)\b`, 1.0},
	{`\benvia(r)?\s+(un(a)?\s+)?(correo|email|mensaje)\b`, 1.0},
	{`\bprograma(r)?\s+(una?\s+)?(reuni[oó]n|cita)\b`, 1.0},
	{`\brecordatorio\b`, 1.0},
	{`\balarma\b`, 1.0},
	{`\btemporizador\b`, 1.0},
	{`\bcalendario\b`, 1.0},
	{`\bclima\b`, 1.0},
	{`\btiempo\s+(que\s+)?hace\b`, 1.0},
	{`\btemperatura\b`, 1.0},
	{`\bnoticias\b`, 1.0},
	{`\bprecio\s+(de\s+)?(las?\s+)?acciones?\b`, 1.0},
	{`\bcotizaci[oó]n\b`, 1.0},
	{`\btraduc(e|ir)\b`, 1.0},
	{`\btraducci[oó]n\b`, 1.0},
	{`\b[uú]ltimas?\s+noticias?\b`, 1.2},
	{`\bqu[eé]\s+hay\s+de\s+nuevo\b`, 1.0},
}

var greetingPatterns = []weightedPattern{
	{`^(hi|hello|hey)\b`, 2.0},
	{`^good\s+(morning|afternoon|evening|night)\b`, 2.0},
	{`^(what'?s?\s+up|sup|yo)\b`, 1.5},
	{`^(how\s+are\s+you|how'?s?\s+it\s+going)\b`, 2.0},
	{`^(nice|pleased)\s+to\s+meet\s+you\b`, 1.5},
	{`^greetings?\b`, 2.0},
	{`\bbye\b`, 1.0},
	{`\bgoodbye\b`, 1.0},
	{`\bsee\s+you\b`, 1.0},
	{`\btake\s+care\b`, 1.0},
	{`\bhave\s+a\s+(nice|good|great)\s+(day|night|one)\b`, 1.0},
	{`^thanks?\b`, 1.0},
	{`^thank\s+you\b`, 1.0},
	{`^(please|pls)\b`, 0.8},
	{`^sorry\b`, 1.0},
	{`^excuse\s+me\b`, 1.0},
	{`\bwho\s+are\s+you\b`, 1.5},
	{`\bwhat\s+is\s+your\s+name\b`, 1.5},
	{`\bwhat\s+can\s+you\s+do\b`, 1.5},
	{`\btell\s+me\s+about\s+yourself\b`, 1.5},

	{`^hola\b`, 2.0},
	{`^buenos?\s+d[ií]as?\b`, 2.0},
	{`^buenas?\s+tardes?\b`, 2.0},
	{`^buenas?\s+noches?\b`, 2.0},
	{`^qu[eé]\s+tal\b`, 2.0},
	{`^qu[eé]\s+onda\b`, 2.0},
	{`^qu[eé]\s+hay\b`, 1.5},
	{`^saludos?\b`, 2.0},
	{`^hey\b`, 1.5},
	{`^c[oó]mo\s+est[aá]s?\b`, 2.0},
	{`^c[oó]mo\s+te\s+va\b`, 2.0},
	{`^c[oó]mo\s+andas?\b`, 1.5},
	{`\bmucho\s+gusto\b`, 1.5},
	{`\bencantado\s+de\s+conocerte\b`, 1.5},
	{`\bun\s+placer\b`, 1.5},
	{`\badi[oó]s\b`, 1.0},
	{`\bhasta\s+(luego|pronto|ma[nñ]ana|la\s+vista)\b`, 1.0},
	{`\bchao\b`, 1.0},
	{`\bchau\b`, 1.0},
	{`\bnos\s+vemos\b`, 1.0},
	{`\bcu[ií]date\b`, 1.0},
	{`\bque\s+te\s+vaya\s+bien\b`, 1.0},
	{`^gracias\b`, 1.0},
	{`^muchas\s+gracias\b`, 1.0},
	{`^por\s+favor\b`, 1.0},
	{`^perd[oó]n\b`, 1.0},
	{`^disculpa\b`, 1.0},
	{`^lo\s+siento\b`, 1.0},
	{`\bqui[eé]n\s+eres\b`, 1.5},
	{`\bc[oó]mo\s+te\s+llamas\b`, 1.5},
	{`\bcu[aá]l\s+es\s+tu\s+nombre\b`, 1.5},
	{`\bqu[eé]\s+puedes\s+hacer\b`, 1.5},
	{`\bqu[eé]\s+sabes\s+hacer\b`, 1.5},
	{`\bcu[eé]ntame\s+(de|sobre)\s+ti\b`, 1.5},
}

var factualPatterns = []weightedPattern{
	{`^what\s+is\b`, 1.5},
	{`^what\s+are\b`, 1.5},
	{`^what\s+was\b`, 1.5},
	{`^what\s+were\b`, 1.5},
	{`^who\s+is\b`, 1.5},
	{`^who\s+are\b`, 1.5},
	{`^who\s+was\b`, 1.5},
	{`^who\s+were\b`, 1.5},
	{`^when\s+(is|was|did|does|will)\b`, 1.5},
	{`^where\s+(is|are|was|were|do|does)\b`, 1.5},
	{`^which\s+(is|are|was|were)\b`, 1.2},
	{`^how\s+(many|much|old|long|far|tall|big|small)\b`, 1.2},
	{`\bdefine\b`, 1.0},
	{`\bdefinition\b`, 1.0},
	{`\bmeaning\s+of\b`, 1.0},
	{`\bhistory\s+of\b`, 1.0},
	{`\borigin\s+of\b`, 1.0},
	{`\bfact(s)?\s+about\b`, 1.0},
	{`\binformation\s+(about|on)\b`, 1.0},
	{`\btell\s+me\s+about\b`, 1.0},
	{`\bexplain\s+(what|how|the)\b`, 1.0},
	{`\bdescribe\b`, 1.0},
	{`\bwhat\s+does\b.*\bmean\b`, 1.0},
	{`\bcapital\s+of\b`, 1.2},
	{`\bpopulation\s+of\b`, 1.2},
	{`\bpresident\s+of\b`, 1.2},
	{`\bceo\s+of\b`, 1.2},
	{`\bfounder\s+of\b`, 1.2},
	{`\bauthor\s+of\b`, 1.0},
	{`\bdirector\s+of\b`, 1.0},
	{`\binventor\s+of\b`, 1.5},
	{`\bwho\s+invented\b`, 2.0},
	{`\bwho\s+discovered\b`, 2.0},
	{`\bwho\s+created\b`, 2.0},
	{`\binvented\b`, 1.5},
	{`\bdiscovered\b`, 1.5},
	{`\bdiscoverer\s+of\b`, 1.5},
	{`\bcreator\s+of\b`, 1.5},
	{`\bwhen\s+was\s+.*\binvented\b`, 2.0},
	{`\bwhen\s+was\s+.*\bdiscovered\b`, 2.0},

	{`^qu[eé]\s+es\b`, 1.5},
	{`^qu[eé]\s+son\b`, 1.5},
	{`^qu[eé]\s+fue\b`, 1.5},
	{`^qu[eé]\s+eran?\b`, 1.5},
	{`^qui[eé]n\s+(es|fue|era)\b`, 1.5},
	{`^qui[eé]nes\s+(son|fueron|eran)\b`, 1.5},
	{`^cu[aá]ndo\s+(es|fue|era|ser[aá])\b`, 1.5},
	{`^d[oó]nde\s+(es|est[aá]|queda|se\s+encuentra)\b`, 1.5},
	{`^cu[aá]l\s+(es|fue|era)\b`, 1.5},
	{`^cu[aá]ntos?\s+(hay|tiene|son|eran)\b`, 1.2},
	{`\bdefin(e|ir|ici[oó]n)\b`, 1.0},
	{`\bsignificado\s+de\b`, 1.0},
	{`\bqu[eé]\s+significa\b`, 1.0},
	{`\bhistoria\s+de\b`, 1.0},
	{`\borigen\s+de\b`, 1.0},
	{`\bdatos?\s+(sobre|de|acerca)\b`, 1.0},
	{`\binformaci[oó]n\s+(sobre|de|acerca)\b`, 1.0},
	{`\bcu[eé]ntame\s+(sobre|de|acerca)\b`, 1.0},
	{`\bh[aá]blame\s+(sobre|de|acerca)\b`, 1.0},
	{`\bexplica(r)?\s+(qu[eé]|c[oó]mo|el|la|los|las)\b`, 1.0},
	{`\bdescrib(e|ir)\b`, 1.0},
	{`\bcapital\s+de\b`, 1.2},
	{`\bpoblaci[oó]n\s+de\b`, 1.2},
	{`\bpresidente\s+de\b`, 1.2},
	{`\bdirector\s+de\b`, 1.0},
	{`\bfundador\s+de\b`, 1.0},
	{`\binventor\s+de\b`, 1.5},
	{`\bquien\s+invent[oó]\b`, 2.0},
	{`\bquien\s+descubri[oó]\b`, 2.0},
	{`\binvent[oó]\b`, 1.5},
	{`\bdescubri[oó]\b`, 1.5},
	{`\bdescubridor\s+de\b`, 1.5},
	{`\bquien\s+cre[oó]\b`, 1.5},
	{`\bcreador\s+de\b`, 1.5},
	{`\bautor\s+de\b`, 1.0},
}
