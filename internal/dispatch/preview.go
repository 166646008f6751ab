package dispatch

// Preview monta o resumo curto exibido na lista de conversas.
func Preview(kind Kind, p Payload) string {
	switch kind {
	case KindImage:
		if p.Caption != "" {
			return "📷 " + p.Caption
		}
		return "📷 Imagem"
	case KindAudio:
		return "🎤 Áudio"
	case KindVideo:
		if p.Caption != "" {
			return "🎥 " + p.Caption
		}
		return "🎥 Vídeo"
	case KindDocument:
		if p.FileName != "" {
			return "📄 " + p.FileName
		}
		return "📄 Documento"
	default:
		return p.Text
	}
}
