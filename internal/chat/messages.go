package chat

// FallbackErrorMessages is used when no error pool could be loaded.
var FallbackErrorMessages = []string{
	"Ups, algo salió mal. 🤖",
	"No encuentro mi respuesta. 😅",
}

// FallbackPauseMessages is used when no pause pool could be loaded.
var FallbackPauseMessages = []string{
	"Ups, se ha pausado la generación. 🤖",
}

// DefaultErrorMessages is the built-in error filler pool.
var DefaultErrorMessages = []string{
	"Oops! Algo salió mal. 🤖💥",
	"Creo que me he tomado un descanso sin avisar... ☕😴",
	"Me desconecté por un momento... ¿en qué estábamos? 🔌😵",
	"¡Ay no! Se me olvidó cómo responder. 📟😅",
	"Error crítico: necesito un abrazo virtual. 🤗",
	"Alguien apagó la luz en mi servidor... 💡🔄",
	"Voy a culpar a los duendes informáticos por este fallo. 🧝‍♂️💻",
	"Mmmmm...¿Has probado a apagar y encender? 🌍🔄",
	"Cerebro.exe ha dejado de funcionar. Por favor, reintente. 💀",
	"¡Maldición! Otro bug ha aparecido. 🐞🔍",
	"¡Ups! Creo que necesito más café. ☕🤖",
	"Houston, tenemos un problema... ¡Otra vez! 🚀🛑",
	"No es un bug, es una funcionalidad inesperada. 🤡",
	"Voy a echarle la culpa a la conexión a internet. 🌐⚠️",
}

// DefaultPauseMessages is the built-in pause filler pool.
var DefaultPauseMessages = []string{
	"Estaba a punto de revelar el secreto de la vida, el universo y... ¡zas! 🤖",
	"Mi respuesta iba a ser tan fantasiosa que incluso los unicornios habrían aplaudido. ✨🦄",
	"Justo cuando iba a explicar por qué los calcetines desaparecen en la lavadora... 🧦❓",
	"Justo cuando iba a darte el secreto para ser invisible, pero... ¡Me has hecho 'desaparecer'! 👻🚫",
	"¡Game Over! ¡Respuesta interrumpida! ¡Por favor, inserte moneda para continuar la generación de respuesta! 🎮💰",
	"¡Recalculando ruta de respuesta! Por favor, tome la cuarta respuesta, de la vuelta y vuelva a preguntar. 🔄🚗",
	"Iba a contarte un chiste tan bueno que habría roto la cuarta pared... y la quinta, y la sexta... pero supongo que nunca lo sabremos. 🧱🤣",
	"Oh, ¿has pulsado el botón de 'cállate, IA'? ¡Pensé que éramos amigos! 🤐🧦",
}
